package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
	"github.com/telecare/billingcore/internal/config"
	ierr "github.com/telecare/billingcore/internal/errors"
)

// Claims is the patient identity carried by a portal access token
type Claims struct {
	PatientID string
	Email     string
}

// TokenValidator validates portal access tokens
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

type supabaseAuth struct {
	secret []byte
}

// NewSupabaseAuth validates HS256 access tokens issued by Supabase Auth
func NewSupabaseAuth(cfg *config.Configuration) TokenValidator {
	return &supabaseAuth{
		secret: []byte(cfg.Auth.Supabase.JWTSecret),
	}
}

func (s *supabaseAuth) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, ierr.NewError("supabase jwt secret is not configured").
			WithHint("Authentication is not available").
			Mark(ierr.ErrSystem)
	}

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid or expired access token").
			Mark(ierr.ErrUnauthenticated)
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok || !parsedToken.Valid {
		return nil, ierr.NewError("invalid token claims").
			WithHint("Invalid or expired access token").
			Mark(ierr.ErrUnauthenticated)
	}

	patientID, _ := claims["sub"].(string)
	if patientID == "" {
		return nil, ierr.NewError("token missing subject").
			WithHint("Invalid or expired access token").
			Mark(ierr.ErrUnauthenticated)
	}

	email, _ := claims["email"].(string)

	return &Claims{
		PatientID: patientID,
		Email:     email,
	}, nil
}
