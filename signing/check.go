package signing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/sigstore/cosign/v2/pkg/cosign"
	sigs "github.com/sigstore/cosign/v2/pkg/signature"
	"github.com/sigstore/sigstore/pkg/signature"
)

// loadKeyVerifier loads a public key from a path or KMS reference.
func loadKeyVerifier(ctx context.Context, keyRef string) (signature.Verifier, error) {
	verifier, err := sigs.PublicKeyFromKeyRef(ctx, keyRef)
	if err != nil {
		return nil, fmt.Errorf("load public key %s: %w", keyRef, err)
	}
	return verifier, nil
}

// checkSignature runs the actual Cosign verification for a reference.
func checkSignature(ctx context.Context, ref string, opts *cosign.CheckOpts) (*Result, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return nil, fmt.Errorf("parse reference %s: %w", ref, err)
	}

	verified, bundleVerified, err := cosign.VerifyImageSignatures(ctx, parsed, opts)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", ref, err)
	}
	if len(verified) == 0 {
		return nil, fmt.Errorf("no signatures verified for %s", ref)
	}

	result := &Result{
		Verified: true,
		SignedAt: time.Now(),
	}
	if bundleVerified {
		result.TransparencyLog = "bundle"
	}
	if cert, err := verified[0].Cert(); err == nil && cert != nil {
		for _, email := range cert.EmailAddresses {
			result.Signer = email
			break
		}
	}
	return result, nil
}
