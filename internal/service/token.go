package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OfferTokenClaims identifies which provider may act on which job. The token
// is a capability, not a session: it is minted per offer at broadcast time
// and expires with the offer.
type OfferTokenClaims struct {
	JobID      string `json:"job_id"`
	ProviderID string `json:"provider_id"`
	jwt.RegisteredClaims
}

// OfferTokenSigner mints and verifies the signed action tokens embedded in
// offer notifications.
type OfferTokenSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewOfferTokenSigner creates a signer with the given HMAC secret and token
// lifetime.
func NewOfferTokenSigner(secret []byte, ttl time.Duration) *OfferTokenSigner {
	return &OfferTokenSigner{secret: secret, ttl: ttl}
}

// Sign returns a token authorizing providerID to act on jobID until the
// offer TTL elapses.
func (s *OfferTokenSigner) Sign(jobID, providerID string) (string, error) {
	claims := &OfferTokenClaims{
		JobID:      jobID,
		ProviderID: providerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "prereno-backend",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses and validates a token, returning its claims.
func (s *OfferTokenSigner) Verify(tokenString string) (*OfferTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OfferTokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*OfferTokenClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}
