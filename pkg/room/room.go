// Package room issues signed join tokens for the realtime call room. The
// browser client presents the token to the media server, which verifies it
// against the shared API secret. Claims follow the common video-room grant
// shape: room name, participant identity, and join permission.
package room

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL bounds how long a join token is usable. Admissions calls run
// minutes, not hours; an hour covers reconnects without leaving long-lived
// credentials in browser history.
const DefaultTTL = time.Hour

var errMissingConfig = errors.New("room: api key and secret are required")

// VideoGrant is the room permission block embedded in the token.
type VideoGrant struct {
	Room           string `json:"room"`
	RoomJoin       bool   `json:"roomJoin"`
	CanPublish     bool   `json:"canPublish"`
	CanPublishData bool   `json:"canPublishData"`
	CanSubscribe   bool   `json:"canSubscribe"`
}

// Claims is the full token payload.
type Claims struct {
	jwt.RegisteredClaims
	Video VideoGrant `json:"video"`
}

// TokenIssuer mints join tokens for one media-server API key pair.
type TokenIssuer struct {
	apiKey    string
	apiSecret []byte
	ttl       time.Duration
}

// NewTokenIssuer creates an issuer. ttl <= 0 uses DefaultTTL.
func NewTokenIssuer(apiKey, apiSecret string, ttl time.Duration) (*TokenIssuer, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, errMissingConfig
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenIssuer{apiKey: apiKey, apiSecret: []byte(apiSecret), ttl: ttl}, nil
}

// JoinToken mints an HS256 token letting identity join room with publish
// and subscribe permission.
func (t *TokenIssuer) JoinToken(room, identity string) (string, error) {
	if room == "" || identity == "" {
		return "", errors.New("room: room and identity are required")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.apiKey,
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Video: VideoGrant{
			Room:           room,
			RoomJoin:       true,
			CanPublish:     true,
			CanPublishData: true,
			CanSubscribe:   true,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.apiSecret)
	if err != nil {
		return "", fmt.Errorf("room: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token minted by this issuer. Used in tests
// and by the local media bridge.
func (t *TokenIssuer) Verify(token string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("room: unexpected signing method %v", tok.Header["alg"])
		}
		return t.apiSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("room: verify token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("room: invalid token")
	}
	return &claims, nil
}
