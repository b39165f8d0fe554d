package kick

import "context"

// FetchRequest is a request made through the shared fetch utility.
type FetchRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// FetchResponse is the outcome of a FetchRequest.
type FetchResponse struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers,omitempty"`
	Body       []byte              `json:"body,omitempty"`
	Truncated  bool                `json:"truncated,omitempty"`
}

// FetchFunc is the host-provided network utility handed to every instance
// through Props. Shared by reference across instances; read-only.
type FetchFunc func(ctx context.Context, req FetchRequest) (*FetchResponse, error)
