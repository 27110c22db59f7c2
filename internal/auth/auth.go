// Package auth issues admin tokens and carries the acting admin through a
// request context.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"donateblood/m/domain"
)

type ctxKey string

const ctxAdmin ctxKey = "admin"

// WithAdmin returns a context carrying the acting admin.
func WithAdmin(ctx context.Context, admin domain.Admin) context.Context {
	return context.WithValue(ctx, ctxAdmin, admin)
}

// AdminFromContext returns the acting admin, if any.
func AdminFromContext(ctx context.Context) (domain.Admin, bool) {
	admin, ok := ctx.Value(ctxAdmin).(domain.Admin)
	return admin, ok
}

type Claims struct {
	UserID     int64  `json:"user_id"`
	HospitalID *int64 `json:"hospital_id,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 admin tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

func (i *Issuer) Generate(admin domain.Admin) (string, error) {
	claims := Claims{
		UserID:     admin.UserID,
		HospitalID: admin.HospitalID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

func (i *Issuer) Parse(tokenString string) (domain.Admin, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return domain.Admin{}, errors.New("invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return domain.Admin{}, errors.New("invalid token claims")
	}
	return domain.Admin{UserID: claims.UserID, HospitalID: claims.HospitalID}, nil
}
