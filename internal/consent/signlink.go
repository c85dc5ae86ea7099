package consent

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidSignToken covers expired, malformed and mis-scoped sign-link
// tokens alike. The patient-facing handler surfaces them all the same way.
var ErrInvalidSignToken = errors.New("invalid or expired sign link")

type signLinkClaims struct {
	ConsentID string `json:"consent_id"`
	jwt.RegisteredClaims
}

// SignLink builds the URL the patient device opens to sign a consent record.
// The embedded token is scoped to a single consent id and expires, so a leaked
// link goes stale instead of becoming a standing credential.
func (s *Service) SignLink(consentID uuid.UUID) (string, error) {
	now := s.clk.Now()

	claims := signLinkClaims{
		ConsentID: consentID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.SignLinkTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.SignLinkSecret))
	if err != nil {
		return "", fmt.Errorf("sign link token: %w", err)
	}

	return fmt.Sprintf("%s/consents/%s/sign?token=%s",
		s.cfg.SignLinkBaseURL, consentID.String(), url.QueryEscape(token)), nil
}

// VerifySignToken checks a sign-link token and confirms it is scoped to the
// given consent id.
func (s *Service) VerifySignToken(tokenString string, consentID uuid.UUID) error {
	var claims signLinkClaims

	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.SignLinkSecret), nil
	}, jwt.WithTimeFunc(func() time.Time { return s.clk.Now() }))
	if err != nil || !token.Valid {
		return ErrInvalidSignToken
	}

	if claims.ConsentID != consentID.String() {
		return ErrInvalidSignToken
	}
	return nil
}
