package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Issuer firma y valida tokens HS256 con un secreto compartido entre nodos.
type Issuer struct {
	Iss       string        // "iss"
	Secret    []byte        // clave HMAC
	AccessTTL time.Duration // TTL por defecto (ej: 15m)
}

func NewIssuer(iss, secret string) *Issuer {
	return &Issuer{
		Iss:       iss,
		Secret:    []byte(secret),
		AccessTTL: 15 * time.Minute,
	}
}

// Enabled reporta si hay secreto configurado.
func (i *Issuer) Enabled() bool { return i != nil && len(i.Secret) > 0 }

// IssueAccess emite un token para sub. ttl <= 0 usa AccessTTL.
func (i *Issuer) IssueAccess(sub string, ttl time.Duration, std map[string]any) (string, time.Time, error) {
	if !i.Enabled() {
		return "", time.Time{}, errors.New("jwt: issuer without secret")
	}
	if ttl <= 0 {
		ttl = i.AccessTTL
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": sub,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	for k, v := range std {
		claims[k] = v
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(i.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}
