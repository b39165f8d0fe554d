// Package oci resolves kick bundles distributed as OCI artifacts. An
// oci://registry/repo:tag source is pulled with oras, its WASM layer
// extracted, optionally signature-verified, and handed to the wazero
// resolver for instantiation.
package oci

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"

	"github.com/kick-dev/kick-host-sdk/loader"
	"github.com/kick-dev/kick-host-sdk/netutil"
	"github.com/kick-dev/kick-host-sdk/signing"
	wazerohost "github.com/kick-dev/kick-host-sdk/wazero"
)

// WASMLayerMediaType marks the bundle layer inside a kick artifact.
const WASMLayerMediaType = "application/vnd.kick.bundle.v1.wasm"

// CredentialFunc supplies registry credentials for a registry host.
type CredentialFunc func(ctx context.Context, registry string) (username, password string, err error)

// Resolver pulls kick bundle artifacts from OCI registries.
type Resolver struct {
	wasm        *wazerohost.Resolver
	verifier    signing.BundleVerifier
	credentials CredentialFunc
	plainHTTP   bool
	logger      *slog.Logger
}

var _ loader.ModuleResolver = (*Resolver)(nil)

// Option configures a Resolver.
type Option func(*Resolver)

// WithVerifier requires signature verification before instantiation.
func WithVerifier(v signing.BundleVerifier) Option {
	return func(r *Resolver) { r.verifier = v }
}

// WithCredentials sets the registry credential source.
func WithCredentials(fn CredentialFunc) Option {
	return func(r *Resolver) { r.credentials = fn }
}

// WithPlainHTTP allows plain-HTTP registries. Meant for local development
// registries only.
func WithPlainHTTP(allow bool) Option {
	return func(r *Resolver) { r.plainHTTP = allow }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates an OCI artifact resolver delegating instantiation to
// the given WASM resolver.
func NewResolver(wasm *wazerohost.Resolver, opts ...Option) *Resolver {
	r := &Resolver{
		wasm:   wasm,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Supports implements loader.ModuleResolver.
func (r *Resolver) Supports(sourceURL string) bool {
	return netutil.IsOCI(sourceURL)
}

// Resolve implements loader.ModuleResolver.
func (r *Resolver) Resolve(ctx context.Context, sourceURL string) (loader.Module, error) {
	ref := strings.TrimPrefix(sourceURL, "oci://")

	if r.verifier != nil {
		result, err := r.verifier.VerifySignature(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("signature verification: %w", err)
		}
		r.logger.Info("kick bundle signature verified",
			"ref", ref,
			"signer", result.Signer,
			"signed_at", result.SignedAt)
	}

	bundle, err := r.pull(ctx, ref)
	if err != nil {
		return nil, err
	}
	return r.wasm.Instantiate(ctx, sourceURL, bundle)
}

// pull copies the artifact into a memory store and extracts the WASM layer.
func (r *Resolver) pull(ctx context.Context, ref string) ([]byte, error) {
	repoRef, tag, ok := strings.Cut(ref, ":")
	if !ok || tag == "" {
		return nil, fmt.Errorf("oci reference %q has no tag", ref)
	}

	repo, err := remote.NewRepository(repoRef)
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}
	repo.PlainHTTP = r.plainHTTP
	if r.credentials != nil {
		registryHost := repoRef
		if idx := strings.Index(repoRef, "/"); idx != -1 {
			registryHost = repoRef[:idx]
		}
		username, password, err := r.credentials(ctx, registryHost)
		if err == nil && username != "" {
			repo.Client = &auth.Client{
				Credential: func(ctx context.Context, registry string) (auth.Credential, error) {
					return auth.Credential{Username: username, Password: password}, nil
				},
			}
		}
	}

	store := memory.New()
	manifestDesc, err := oras.Copy(ctx, repo, tag, store, tag, oras.CopyOptions{})
	if err != nil {
		return nil, fmt.Errorf("pull artifact: %w", err)
	}

	manifest, err := r.fetchManifest(ctx, store, manifestDesc)
	if err != nil {
		return nil, err
	}

	layerDesc, err := findWASMLayer(manifest)
	if err != nil {
		return nil, err
	}

	layer, err := store.Fetch(ctx, layerDesc)
	if err != nil {
		return nil, fmt.Errorf("fetch bundle layer: %w", err)
	}
	defer func() { _ = layer.Close() }()

	bundle, err := io.ReadAll(layer)
	if err != nil {
		return nil, fmt.Errorf("read bundle layer: %w", err)
	}
	return bundle, nil
}

func (r *Resolver) fetchManifest(
	ctx context.Context,
	store *memory.Store,
	desc ocispec.Descriptor,
) (*ocispec.Manifest, error) {
	rc, err := store.Fetch(ctx, desc)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	defer func() { _ = rc.Close() }()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var manifest ocispec.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &manifest, nil
}

func findWASMLayer(manifest *ocispec.Manifest) (ocispec.Descriptor, error) {
	for _, layer := range manifest.Layers {
		if layer.MediaType == WASMLayerMediaType ||
			strings.HasSuffix(layer.MediaType, "wasm") {
			return layer, nil
		}
	}
	return ocispec.Descriptor{}, fmt.Errorf("artifact has no WASM bundle layer")
}
