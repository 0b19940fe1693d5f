package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid_jwt")
	ErrInvalidIssuer = errors.New("invalid_issuer")
)

// Parse valida firma HS256, iss y exp/nbf con 30s de tolerancia.
// Devuelve las claims como map[string]any.
func (i *Issuer) Parse(token string) (map[string]any, error) {
	tok, err := jwtv5.Parse(token, func(*jwtv5.Token) (any, error) { return i.Secret, nil },
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithLeeway(30*time.Second),
	)
	if err != nil || !tok.Valid {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, jwtv5.ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, errors.New("claims_type")
	}

	if i.Iss != "" {
		if iss, _ := claims["iss"].(string); iss != i.Iss {
			return nil, ErrInvalidIssuer
		}
	}

	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return out, nil
}
