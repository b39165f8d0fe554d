package values_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/kick-dev/kick-host-sdk/kick/values"
)

func TestNewKickID(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		id, err := values.NewKickID("open-in-viewer")
		if err != nil {
			t.Fatalf("NewKickID failed: %v", err)
		}
		if id.String() != "open-in-viewer" {
			t.Errorf("expected open-in-viewer, got %s", id.String())
		}
	})

	t.Run("TrimsWhitespace", func(t *testing.T) {
		id, err := values.NewKickID("  spaced  ")
		if err != nil {
			t.Fatalf("NewKickID failed: %v", err)
		}
		if id.String() != "spaced" {
			t.Errorf("expected spaced, got %q", id.String())
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if _, err := values.NewKickID("   "); err == nil {
			t.Error("expected error for blank id")
		}
	})

	t.Run("TooLong", func(t *testing.T) {
		if _, err := values.NewKickID(strings.Repeat("a", 129)); err == nil {
			t.Error("expected error for oversized id")
		}
	})

	t.Run("ControlCharacters", func(t *testing.T) {
		if _, err := values.NewKickID("bad\x00id"); err == nil {
			t.Error("expected error for control characters")
		}
	})
}

func TestKickID_JSONRoundTrip(t *testing.T) {
	id := values.MustNewKickID("share-kick")
	data, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded values.KickID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !decoded.Equals(id) {
		t.Errorf("round trip changed id: %s != %s", decoded.String(), id.String())
	}
}

func TestKickID_UnmarshalRejectsInvalid(t *testing.T) {
	var id values.KickID
	if err := json.Unmarshal([]byte(`""`), &id); err == nil {
		t.Error("expected error unmarshalling empty id")
	}
}
