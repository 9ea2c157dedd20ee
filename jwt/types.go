package jwt

import "encoding/json"

type Header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid,omitempty"`
}

type Claims struct {
	ID             string      `json:"id,omitempty"`
	Issuer         string      `json:"iss,omitempty"`
	Subject        string      `json:"sub,omitempty"`
	Audience       string      `json:"aud,omitempty"`
	ExpirationTime json.Number `json:"exp,omitempty"`
	IssuedAt       json.Number `json:"iat,omitempty"`
	JWTID          string      `json:"jti,omitempty"`
}

// Principal returns the identity the token speaks for.
func (c Claims) Principal() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Subject
}
