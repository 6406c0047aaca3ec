package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/devportal/cognito"
	"github.com/upb/devportal/utils"
	"go.uber.org/zap"
)

// MockTokenValidator is a mock implementation of TokenValidator
type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (*cognito.Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cognito.Claims), args.Error(1)
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) utils.ErrorResponse {
	t.Helper()
	var body utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"bearer scheme", "Bearer abc123", "abc123"},
		{"bare token", "abc123", "abc123"},
		{"lower case scheme", "bearer abc123", "abc123"},
		{"extra whitespace", "  Bearer \t abc123  ", "abc123"},
		{"other scheme still takes last segment", "Token abc123", "abc123"},
		{"scheme only", "Bearer", "Bearer"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBearerToken(tt.header))
		})
	}
}

func TestRequireAuth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid token allows request and stores claims", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		middleware := NewAuthMiddleware(mockValidator, logger)

		claims := &cognito.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123"},
			Email:            "user@example.com",
		}
		mockValidator.On("ValidateToken", mock.Anything, "valid-token").Return(claims, nil)

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			extracted := GetClaimsFromContext(r.Context())
			require.NotNil(t, extracted)
			assert.Equal(t, "user-123", extracted.Subject)
			assert.Equal(t, "user@example.com", extracted.Email)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockValidator.AssertExpectations(t)
	})

	t.Run("bare token header is accepted", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		middleware := NewAuthMiddleware(mockValidator, logger)

		mockValidator.On("ValidateToken", mock.Anything, "abc123").Return(&cognito.Claims{}, nil)

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/docs", nil)
		req.Header.Set("Authorization", "abc123")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockValidator.AssertExpectations(t)
	})

	t.Run("missing header returns 401 without calling validator", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		middleware := NewAuthMiddleware(mockValidator, logger)

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		body := decodeErrorBody(t, w)
		assert.Equal(t, string(cognito.KindMissingCredential), body.Error)
		assert.Equal(t, "Missing Authorization header", body.Message)
		mockValidator.AssertNotCalled(t, "ValidateToken", mock.Anything, mock.Anything)
	})

	t.Run("verifier errors map to their status and message", func(t *testing.T) {
		tests := []struct {
			name       string
			err        error
			wantStatus int
			wantError  string
			wantMsg    string
		}{
			{
				name:       "unknown key",
				err:        &cognito.VerificationError{Kind: cognito.KindUnknownKey, Message: "Unknown token key"},
				wantStatus: http.StatusUnauthorized,
				wantError:  "unknown_key",
				wantMsg:    "Unknown token key",
			},
			{
				name:       "token invalid",
				err:        &cognito.VerificationError{Kind: cognito.KindTokenInvalid, Message: "Token error: token has invalid audience"},
				wantStatus: http.StatusUnauthorized,
				wantError:  "token_invalid",
				wantMsg:    "Token error: token has invalid audience",
			},
			{
				name:       "not configured",
				err:        &cognito.VerificationError{Kind: cognito.KindConfiguration, Message: "Cognito not configured"},
				wantStatus: http.StatusInternalServerError,
				wantError:  "configuration_error",
				wantMsg:    "Cognito not configured",
			},
			{
				name:       "plain error",
				err:        errors.New("boom"),
				wantStatus: http.StatusUnauthorized,
				wantError:  "token_invalid",
				wantMsg:    "boom",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mockValidator := new(MockTokenValidator)
				middleware := NewAuthMiddleware(mockValidator, logger)
				mockValidator.On("ValidateToken", mock.Anything, "tok").Return(nil, tt.err)

				handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					t.Fatal("handler should not be called")
				}))

				req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
				req.Header.Set("Authorization", "Bearer tok")
				w := httptest.NewRecorder()

				handler.ServeHTTP(w, req)

				assert.Equal(t, tt.wantStatus, w.Code)
				body := decodeErrorBody(t, w)
				assert.Equal(t, tt.wantError, body.Error)
				assert.Equal(t, tt.wantMsg, body.Message)
				mockValidator.AssertExpectations(t)
			})
		}
	})

	t.Run("nil logger is allowed", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m := NewAuthMiddleware(new(MockTokenValidator), nil)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			m.RequireAuth(http.NotFoundHandler()).ServeHTTP(httptest.NewRecorder(), req)
		})
	})
}
