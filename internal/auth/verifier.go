package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
)

var ErrInvalidCredential = errors.New("invalid credential")

// Verifier checks an opaque credential with whatever identity system the
// deployment uses and returns the subject it belongs to. The credential's
// format and meaning are the verifier's business.
type Verifier interface {
	Verify(ctx context.Context, credential string) (string, error)
}

// StaticVerifier accepts a single shared secret. It serves single-user
// deployments and tests.
type StaticVerifier struct {
	Secret  string
	Subject string
}

func (v StaticVerifier) Verify(ctx context.Context, credential string) (string, error) {
	credential = strings.TrimSpace(credential)
	if v.Secret == "" || subtle.ConstantTimeCompare([]byte(credential), []byte(v.Secret)) != 1 {
		return "", ErrInvalidCredential
	}
	subject := v.Subject
	if subject == "" {
		subject = "player"
	}
	return subject, nil
}
