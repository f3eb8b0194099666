package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer is stamped into every access token and enforced on
// parse, so tokens minted by an unrelated service sharing the same
// secret by accident still fail validation.
const tokenIssuer = "kotobadb"

// Claims are the engine-specific JWT claims: the principal id the
// policy engine evaluates, plus the roles granted at issue time so the
// HTTP layer can short-circuit obvious role checks without a store
// round-trip.
type Claims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenService mints and validates the HS256 access tokens and random
// refresh tokens the auth service hands out. The same signing secret
// feeds the HTTP layer's echo-jwt middleware, so a token minted here
// validates there without a second JWT stack.
type TokenService struct {
	secret            []byte
	expiration        time.Duration
	refreshExpiration time.Duration
}

// NewTokenService creates a token service over the shared signing
// secret.
func NewTokenService(secret string, expiration, refreshExpiration time.Duration) *TokenService {
	return &TokenService{
		secret:            []byte(secret),
		expiration:        expiration,
		refreshExpiration: refreshExpiration,
	}
}

// GenerateToken mints a signed access token for user, valid for the
// configured expiration window starting now.
func (s *TokenService) GenerateToken(user *User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   user.ID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken parses and verifies an access token: HMAC signing
// method, signature, expiry, and the kotobadb issuer claim all have to
// hold for the claims to come back.
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpiredToken
	}
	return claims, nil
}

// GenerateTokenPair mints an access token plus an opaque random
// refresh token. Only the refresh token's hash is ever stored; the
// cleartext goes to the client once and is gone.
func (s *TokenService) GenerateTokenPair(user *User) (*TokenPair, error) {
	accessToken, err := s.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: base64.URLEncoding.EncodeToString(b),
		ExpiresAt:    time.Now().Add(s.expiration),
	}, nil
}

// HashRefreshToken hashes a refresh token for storage, reusing the
// bcrypt delegate so stored refresh tokens get the same protection as
// stored passwords.
func HashRefreshToken(token string) (string, error) {
	return HashPassword(token)
}

// ValidateRefreshToken validates a presented refresh token against its
// stored hash.
func ValidateRefreshToken(token, hash string) error {
	return ValidatePassword(token, hash)
}
