package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/upb/devportal/cognito"
	"github.com/upb/devportal/utils"
	"go.uber.org/zap"
)

// TokenValidator defines the interface for validating JWT tokens
type TokenValidator interface {
	// ValidateToken validates a JWT token and returns claims
	ValidateToken(ctx context.Context, token string) (*cognito.Claims, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator TokenValidator, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		validator: validator,
		logger:    logger,
	}
}

// RequireAuth is a middleware that requires a valid bearer token.
// Failures short-circuit with the status reported by the verifier.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := ExtractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID))
			writeVerificationError(w, cognito.NewMissingCredentialError())
			return
		}

		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.String("kind", string(cognito.KindOf(err))),
				zap.Error(err))
			writeVerificationError(w, err)
			return
		}

		ctx = WithClaims(ctx, claims)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", claims.Subject),
			zap.String("username", claims.Username()))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ExtractBearerToken returns the last whitespace-delimited segment of an
// Authorization header value, so "Bearer abc" and a bare "abc" both yield "abc".
func ExtractBearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

func writeVerificationError(w http.ResponseWriter, err error) {
	kind := cognito.KindOf(err)
	_ = utils.WriteJSON(w, kind.HTTPStatus(), utils.ErrorResponse{
		Error:   string(kind),
		Message: err.Error(),
	})
}
