package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

type tenantClaims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// GenTenantJWT 签发携带租户ID的token
func GenTenantJWT(tenantID string, secret string, expired time.Duration) (string, error) {
	now := time.Now()
	claims := tenantClaims{
		tenantID,
		jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expired)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// ParseTenantJWT 校验token并取出租户ID
func ParseTenantJWT(token string, secret string) (string, error) {
	t, err := jwt.ParseWithClaims(token, &tenantClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", errors.Wrap(err, "parse tenant token")
	}
	claims, ok := t.Claims.(*tenantClaims)
	if !ok || !t.Valid {
		return "", errors.New("invalid tenant token")
	}
	return claims.TenantID, nil
}
