package auth

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token purposes. A token issued for one purpose is rejected for any other.
const (
	PurposeAdmin       = "admin"
	PurposeConfirm     = "confirm"
	PurposeUnsubscribe = "unsubscribe"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrWrongPurpose    = errors.New("token issued for a different purpose")
	ErrInvalidIssuer   = errors.New("invalid token issuer")
	ErrInvalidAudience = errors.New("invalid token audience")
)

var (
	mu          sync.RWMutex
	jwtSecret   = []byte(getEnv("JWT_SECRET", "development-insecure-secret-change-me"))
	jwtIssuer   = getEnv("JWT_ISSUER", "ngo-inquiry-tracker")
	jwtAudience = getEnv("JWT_AUDIENCE", "ngo-inquiry-tracker-web")
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Configure replaces the signing secret, issuer and audience. Empty values
// keep the current setting.
func Configure(secret, issuer, audience string) {
	mu.Lock()
	defer mu.Unlock()
	if secret != "" {
		jwtSecret = []byte(secret)
	}
	if issuer != "" {
		jwtIssuer = issuer
	}
	if audience != "" {
		jwtAudience = audience
	}
}

// Claims represents the JWT claims. Subject is the admin username or the
// subscriber ID.
type Claims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for subject and purpose. A ttl <= 0 yields a
// token without expiry, used for unsubscribe links.
func GenerateToken(subject, purpose string, ttl time.Duration) (string, error) {
	mu.RLock()
	secret, issuer, audience := jwtSecret, jwtIssuer, jwtAudience
	mu.RUnlock()

	now := time.Now()
	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ValidateToken validates a JWT token and checks it was issued for purpose.
func ValidateToken(tokenString, purpose string) (*Claims, error) {
	mu.RLock()
	secret, issuer, audience := jwtSecret, jwtIssuer, jwtAudience
	mu.RUnlock()

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}

		return secret, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Issuer != issuer {
		return nil, ErrInvalidIssuer
	}
	// Manually check audience for compatibility with jwt v5 types
	audValid := false
	for _, aud := range claims.Audience {
		if aud == audience {
			audValid = true
			break
		}
	}
	if !audValid {
		return nil, ErrInvalidAudience
	}
	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}
