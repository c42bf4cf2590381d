package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"musicfiles/internal/model"
)

// refreshTokenBytes is the entropy drawn for each opaque refresh token.
const refreshTokenBytes = 64

// TokenService issues and validates access tokens and generates opaque
// refresh tokens. Signing key, issuer and audience are fixed at construction
// and never change for the process lifetime.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenService(signingKey string, issuer string, audience string, accessTTL time.Duration, refreshTTL time.Duration) (*TokenService, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("token signing key is required")
	}
	if issuer == "" || audience == "" {
		return nil, fmt.Errorf("token issuer and audience are required")
	}

	return &TokenService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// CreateToken mints an access token for the public user id plus a fresh
// refresh token. The two are independent secrets; nothing links them except
// the server-side user record.
func (s *TokenService) CreateToken(publicUserID string, roles []model.Role) (model.TokenPair, error) {
	now := time.Now().UTC()
	accessExpiresAt := now.Add(s.accessTTL)

	claims := &model.AccessClaims{
		Roles: model.RoleNames(roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   publicUserID,
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpiresAt),
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := s.GenerateRefreshToken()
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(s.refreshTTL),
	}, nil
}

// GenerateRefreshToken draws 64 bytes from a cryptographically secure source
// and base64-encodes them. Refresh tokens are opaque; their validity is only
// decidable against the stored user record.
func (s *TokenService) GenerateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// ValidateToken checks signature, algorithm, issuer and audience, and the
// expiry unless ignoreExpiry is set. The refresh flow is the only caller
// allowed to ignore expiry: an expired but otherwise valid access token is
// exactly the expected input there. A token failing any single check is
// rejected outright.
func (s *TokenService) ValidateToken(tokenString string, ignoreExpiry bool) (*model.AccessClaims, error) {
	claims := &model.AccessClaims{}

	// Claim validation happens by hand below so the expiry check can be
	// skipped without loosening any of the other checks.
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !parsed.Valid {
		return nil, model.ErrTokenInvalid
	}

	if claims.Issuer != s.issuer {
		return nil, model.ErrTokenInvalid
	}

	if !containsAudience(claims.Audience, s.audience) {
		return nil, model.ErrTokenInvalid
	}

	if claims.ExpiresAt == nil {
		return nil, model.ErrTokenInvalid
	}
	if !ignoreExpiry && time.Now().After(claims.ExpiresAt.Time) {
		return nil, model.ErrTokenInvalid
	}

	return claims, nil
}

// AccessTTL exposes the configured access-token lifetime.
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// RefreshTTL exposes the configured refresh-token lifetime.
func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func containsAudience(audience jwt.ClaimStrings, expected string) bool {
	for _, aud := range audience {
		if aud == expected {
			return true
		}
	}
	return false
}
