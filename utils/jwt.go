package utils

import (
	"errors"
	"strings"
	"time"

	"oplugy/config"

	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"
)

func secretKey() []byte {
	secret := config.AppConfig.JWTSecret
	if secret == "" {
		secret = "OPLUGY"
	}
	return []byte(secret)
}

// GenerateToken creates a signed JWT token with the given subject and email.
// The token expires after the specified duration.
func GenerateToken(subject, email string, duration time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":   subject,
		"email": email,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(duration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey())
}

// ValidateToken parses and validates a token string and returns the token if valid.
func ValidateToken(tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Ensure that the token's signing method is HMAC.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey(), nil
	})
}

// GenerateDemoToken issues the mock bearer token handed out by the demo login.
func GenerateDemoToken(subject, email string) (string, error) {
	signed, err := GenerateToken(subject, email, 24*time.Hour)
	if err != nil {
		return "", err
	}
	return DemoTokenPrefix + signed, nil
}

// IsDemoToken accepts any token carrying the demo prefix; the demo auth
// performs no real credential verification.
func IsDemoToken(token string) bool {
	return strings.HasPrefix(token, DemoTokenPrefix) && len(token) > len(DemoTokenPrefix)
}

// DemoTokenEmail returns the email embedded in a demo token, if it is one we signed.
func DemoTokenEmail(token string) string {
	parsed, err := ValidateToken(strings.TrimPrefix(token, DemoTokenPrefix))
	if err != nil || !parsed.Valid {
		return ""
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	email, _ := claims["email"].(string)
	return email
}

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
