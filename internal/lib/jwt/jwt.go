package jwt

import (
	"errors"
	"fmt"
	"github.com/golang-jwt/jwt/v5"
	"time"
)

// PermManagePolls lets a user create, close and publish polls and read
// results regardless of their public flag.
const PermManagePolls = "manage_polls"

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID      string
	Permissions []string
}

func (c Claims) Has(perm string) bool {
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

func NewAccessToken(userID string, perms []string, secret string, ttl time.Duration) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)
	claims := token.Claims.(jwt.MapClaims)

	claims["uid"] = userID
	claims["perms"] = perms
	claims["typ"] = "access"
	claims["exp"] = time.Now().Add(ttl).Unix()

	return token.SignedString([]byte(secret))
}

// ParseAccessToken verifies signature, expiry and token type and extracts the
// caller's identity.
func ParseAccessToken(tokenString, secret string) (Claims, error) {
	const op = "jwt.ParseAccessToken"

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%s: %w: %v", op, ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if typ, _ := claims["typ"].(string); typ != "access" {
		return Claims{}, fmt.Errorf("%s: %w: wrong token type", op, ErrInvalidToken)
	}

	uid, _ := claims["uid"].(string)
	if uid == "" {
		return Claims{}, fmt.Errorf("%s: %w: missing uid", op, ErrInvalidToken)
	}

	var perms []string
	if raw, ok := claims["perms"].([]interface{}); ok {
		for _, p := range raw {
			if s, ok := p.(string); ok {
				perms = append(perms, s)
			}
		}
	}

	return Claims{UserID: uid, Permissions: perms}, nil
}
