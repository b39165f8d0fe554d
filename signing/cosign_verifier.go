// Package signing verifies the provenance of OCI-distributed kick bundles.
package signing

import (
	"context"
	"fmt"
	"time"

	"github.com/sigstore/cosign/v2/pkg/cosign"
	"github.com/sigstore/cosign/v2/pkg/oci/remote"
)

// Result describes a successful signature verification.
type Result struct {
	Verified        bool
	Signer          string
	SignedAt        time.Time
	TransparencyLog string
}

// BundleVerifier checks the signature of a kick bundle artifact.
type BundleVerifier interface {
	VerifySignature(ctx context.Context, ref string) (*Result, error)
}

// CosignVerifier implements BundleVerifier using Cosign: public keys when
// configured, keyless (OIDC + transparency log) otherwise.
type CosignVerifier struct {
	publicKeys  []string
	oidcIssuers []string
}

var _ BundleVerifier = (*CosignVerifier)(nil)

// NewCosignVerifier creates a Cosign-based verifier.
func NewCosignVerifier(publicKeys []string, oidcIssuers []string) *CosignVerifier {
	if len(oidcIssuers) == 0 {
		oidcIssuers = []string{
			"https://token.actions.githubusercontent.com",
			"https://gitlab.com",
		}
	}
	return &CosignVerifier{
		publicKeys:  publicKeys,
		oidcIssuers: oidcIssuers,
	}
}

// VerifySignature checks the bundle signature for an OCI reference.
func (v *CosignVerifier) VerifySignature(ctx context.Context, ref string) (*Result, error) {
	opts := &cosign.CheckOpts{
		RegistryClientOpts: []remote.Option{},
	}
	if len(v.publicKeys) > 0 {
		return v.verifyWithPublicKeys(ctx, ref, opts)
	}
	return v.verifyKeyless(ctx, ref, opts)
}

func (v *CosignVerifier) verifyWithPublicKeys(
	ctx context.Context,
	ref string,
	opts *cosign.CheckOpts,
) (*Result, error) {
	for _, keyPath := range v.publicKeys {
		verifier, err := loadKeyVerifier(ctx, keyPath)
		if err != nil {
			continue
		}
		opts.SigVerifier = verifier
		result, err := checkSignature(ctx, ref, opts)
		if err == nil {
			return result, nil
		}
	}
	return nil, fmt.Errorf("no valid signatures found for %s", ref)
}

func (v *CosignVerifier) verifyKeyless(
	ctx context.Context,
	ref string,
	opts *cosign.CheckOpts,
) (*Result, error) {
	opts.IgnoreTlog = false

	identities := make([]cosign.Identity, 0, len(v.oidcIssuers))
	for _, issuer := range v.oidcIssuers {
		identities = append(identities, cosign.Identity{Issuer: issuer})
	}
	opts.Identities = identities

	return checkSignature(ctx, ref, opts)
}
