package cognito

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Config holds configuration for CognitoValidator
type Config struct {
	Region      string
	UserPoolID  string
	ClientID    string
	HTTPTimeout time.Duration

	// RefreshOnUnknownKID forces one key set refresh when a token names a kid
	// the cache does not hold. Off by default: a rotated pool key is then
	// rejected until the cache is invalidated or the process restarts.
	RefreshOnUnknownKID bool
}

// Issuer returns the issuer URL tokens of this pool carry
func (c Config) Issuer() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

// JWKSURL returns the well-known key set URL of this pool
func (c Config) JWKSURL() string {
	return c.Issuer() + "/.well-known/jwks.json"
}

// CognitoValidator validates JWT tokens from AWS Cognito
type CognitoValidator struct {
	userPoolID          string
	clientID            string
	issuer              string
	refreshOnUnknownKID bool

	keys   *KeySetCache
	logger *zap.Logger
}

// NewCognitoValidator creates a new Cognito JWT validator around an existing
// key set cache. When keys is nil a cache for the pool's JWKS URL is created.
func NewCognitoValidator(config Config, keys *KeySetCache, logger *zap.Logger) *CognitoValidator {
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 5 * time.Second
	}
	if keys == nil {
		keys = NewKeySetCache(config.JWKSURL(), config.HTTPTimeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CognitoValidator{
		userPoolID:          config.UserPoolID,
		clientID:            config.ClientID,
		issuer:              config.Issuer(),
		refreshOnUnknownKID: config.RefreshOnUnknownKID,
		keys:                keys,
		logger:              logger,
	}
}

// Keys returns the key set cache used by the validator
func (v *CognitoValidator) Keys() *KeySetCache {
	return v.keys
}

// ValidateToken validates a JWT token and returns its claims. Failures are
// always *VerificationError values whose Kind decides the HTTP status.
func (v *CognitoValidator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	if v.userPoolID == "" || v.clientID == "" {
		return nil, newVerificationError(KindConfiguration, "Cognito not configured", nil)
	}
	if tokenString == "" {
		return nil, NewMissingCredentialError()
	}

	keySet, err := v.keys.Get(ctx)
	if err != nil {
		v.logger.Error("jwks fetch failed",
			zap.String("jwks_url", v.keys.URL()),
			zap.Error(err))
		return nil, newVerificationError(KindKeySetUnavailable, err.Error(), err)
	}

	// Parse the header without verifying to get the kid
	kid, err := unverifiedKeyID(tokenString)
	if err != nil {
		return nil, newVerificationError(KindTokenInvalid, "Token error: "+err.Error(), err)
	}

	jwk, ok := keySet.Lookup(kid)
	if !ok && v.refreshOnUnknownKID {
		v.logger.Info("unknown kid, refreshing key set", zap.String("kid", kid))
		if keySet, err = v.keys.Refresh(ctx); err == nil {
			jwk, ok = keySet.Lookup(kid)
		}
	}
	if !ok {
		return nil, newVerificationError(KindUnknownKey, "Unknown token key", nil)
	}

	publicKey, err := jwk.RSAPublicKey()
	if err != nil {
		return nil, newVerificationError(KindTokenInvalid, "Token error: "+err.Error(), err)
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return publicKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, newVerificationError(KindTokenInvalid, "Token error: "+err.Error(), err)
	}

	return claims, nil
}

// unverifiedKeyID extracts the kid header; a missing kid yields "" which no
// key set entry matches
func unverifiedKeyID(tokenString string) (string, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", err
	}
	kid, _ := token.Header["kid"].(string)
	return kid, nil
}
