package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMissingToken     = errors.New("missing authentication token")
	ErrInvalidClaims    = errors.New("invalid token claims")
)

// Claims represents the JWT claims
type Claims struct {
	UserID string   `json:"sub"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningMethod string   // RS256 or HS256
	PublicKey     string   // For RS256
	SecretKey     string   // For HS256
	Issuer        string   // Expected issuer
	Audience      []string // Expected audience
}

// JWTValidator handles JWT validation
type JWTValidator struct {
	publicKey     *rsa.PublicKey
	secretKey     []byte
	signingMethod jwt.SigningMethod
	issuer        string
	audience      []string
}

// NewJWTValidator creates a new JWT validator
func NewJWTValidator(config JWTConfig) (*JWTValidator, error) {
	validator := &JWTValidator{
		issuer:   config.Issuer,
		audience: config.Audience,
	}

	switch config.SigningMethod {
	case "RS256":
		validator.signingMethod = jwt.SigningMethodRS256
		if config.PublicKey == "" {
			return nil, errors.New("public key required for RS256")
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(config.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		validator.publicKey = key
	case "HS256", "":
		validator.signingMethod = jwt.SigningMethodHS256
		if config.SecretKey == "" {
			return nil, errors.New("secret key required for HS256")
		}
		validator.secretKey = []byte(config.SecretKey)
	default:
		return nil, fmt.Errorf("unsupported signing method: %s", config.SigningMethod)
	}

	return validator, nil
}

// ValidateToken validates a JWT token and returns the claims
func (v *JWTValidator) ValidateToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != v.signingMethod {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method.Alg())
		}
		if v.signingMethod == jwt.SigningMethodRS256 {
			return v.publicKey, nil
		}
		return v.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: invalid issuer", ErrInvalidClaims)
	}

	if len(v.audience) > 0 {
		valid := false
		for _, aud := range v.audience {
			if slices.Contains(claims.Audience, aud) {
				valid = true
				break
			}
		}
		if !valid {
			return nil, fmt.Errorf("%w: invalid audience", ErrInvalidClaims)
		}
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user ID", ErrInvalidClaims)
	}

	return claims, nil
}

// Verify implements TokenVerifier
func (v *JWTValidator) Verify(_ context.Context, token string) (*UserContext, error) {
	claims, err := v.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return &UserContext{UserID: claims.UserID, Email: claims.Email, Roles: claims.Roles}, nil
}

// JWTGeneratorConfig holds JWT generator configuration
type JWTGeneratorConfig struct {
	SecretKey  string
	Issuer     string
	Audience   []string
	ExpiryTime time.Duration
}

// JWTGenerator mints HS256 tokens, used by flowctl and tests
type JWTGenerator struct {
	secretKey  []byte
	issuer     string
	audience   []string
	expiryTime time.Duration
	now        func() time.Time
}

// NewJWTGenerator creates a new JWT generator
func NewJWTGenerator(config JWTGeneratorConfig) (*JWTGenerator, error) {
	if config.SecretKey == "" {
		return nil, errors.New("secret key required for HS256")
	}
	expiry := config.ExpiryTime
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &JWTGenerator{
		secretKey:  []byte(config.SecretKey),
		issuer:     config.Issuer,
		audience:   config.Audience,
		expiryTime: expiry,
		now:        time.Now,
	}, nil
}

// GenerateToken generates a new JWT token
func (g *JWTGenerator) GenerateToken(userID, email string, roles []string) (string, error) {
	now := g.now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Audience:  g.audience,
			ExpiresAt: jwt.NewNumericDate(now.Add(g.expiryTime)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secretKey)
}
