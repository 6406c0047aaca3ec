package cognito

import (
	"errors"
	"net/http"
)

// Kind classifies why a token could not be verified
type Kind string

const (
	// KindConfiguration means the pool or client identifier is missing (operator error)
	KindConfiguration Kind = "configuration_error"

	// KindMissingCredential means the request carried no Authorization header
	KindMissingCredential Kind = "missing_credential"

	// KindKeySetUnavailable means the JWKS could not be fetched
	KindKeySetUnavailable Kind = "key_set_unavailable"

	// KindUnknownKey means the token kid is not in the cached key set
	KindUnknownKey Kind = "unknown_key"

	// KindTokenInvalid covers signature, issuer, audience and expiry failures
	KindTokenInvalid Kind = "token_invalid"
)

// HTTPStatus returns the status code a router should answer with
func (k Kind) HTTPStatus() int {
	if k == KindConfiguration {
		return http.StatusInternalServerError
	}
	return http.StatusUnauthorized
}

// VerificationError is the failure half of a verification result
type VerificationError struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface
func (e *VerificationError) Error() string {
	return e.Message
}

// Unwrap implements errors.Unwrap
func (e *VerificationError) Unwrap() error {
	return e.Err
}

func newVerificationError(kind Kind, message string, err error) *VerificationError {
	return &VerificationError{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of a verification error, or KindTokenInvalid for
// any other non-nil error
func KindOf(err error) Kind {
	var verr *VerificationError
	if errors.As(err, &verr) {
		return verr.Kind
	}
	return KindTokenInvalid
}

// IsKind checks if err is a VerificationError of the given kind
func IsKind(err error, kind Kind) bool {
	var verr *VerificationError
	return errors.As(err, &verr) && verr.Kind == kind
}

// NewMissingCredentialError is returned by callers that found no credential to verify
func NewMissingCredentialError() *VerificationError {
	return newVerificationError(KindMissingCredential, "Missing Authorization header", nil)
}
