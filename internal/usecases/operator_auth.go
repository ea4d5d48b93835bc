package usecases

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const operatorTokenTTL = 24 * time.Hour

// OperatorAuth guards the admin HTTP API. A single operator account is
// configured via the environment; the password is hashed at startup and
// successful logins get a signed bearer token.
type OperatorAuth struct {
	username     string
	passwordHash []byte
	secret       []byte
}

func NewOperatorAuth(username, password, secret string) (*OperatorAuth, error) {
	if username == "" || password == "" || secret == "" {
		return nil, errors.New("operator credentials not configured")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash operator password: %w", err)
	}
	return &OperatorAuth{
		username:     username,
		passwordHash: hash,
		secret:       []byte(secret),
	}, nil
}

// Login verifies the credentials and issues a bearer token.
func (a *OperatorAuth) Login(username, password string) (string, error) {
	if username != a.username {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"iat": now.Unix(),
		"exp": now.Add(operatorTokenTTL).Unix(),
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a bearer token, returning the operator name.
func (a *OperatorAuth) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidCredentials
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidCredentials
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidCredentials
	}
	return sub, nil
}
