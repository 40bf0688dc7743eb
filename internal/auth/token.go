package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/foodgram/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTypeAccess is the only token type issued.
const TokenTypeAccess = "access"

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of an access token.
type Claims struct {
	Type string            `json:"type"`
	User types.UserProfile `json:"user"`
	jwt.RegisteredClaims
}

// RemainingTTL is how long the token stays valid after now.
func (c Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

// Issuer signs and verifies access tokens with a shared HMAC secret.
type Issuer struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer constructs an Issuer. algorithm must name an HMAC method (HS256, HS384, HS512).
func NewIssuer(secret, algorithm string, ttl time.Duration) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported token algorithm %q", algorithm)
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &Issuer{
		secret: []byte(secret),
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock replaces the issuer's time source.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Now returns the issuer's current time.
func (i *Issuer) Now() time.Time {
	return i.now()
}

// Issue signs a new access token for the user.
func (i *Issuer) Issue(user types.User) (string, Claims, error) {
	now := i.now()
	claims := Claims{
		Type: TokenTypeAccess,
		User: user.Profile(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        newTokenID(user.ID),
		},
	}

	token := jwt.NewWithClaims(i.method, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, claims, nil
}

// Parse verifies the signature, algorithm, time claims and payload shape.
func (i *Issuer) Parse(tokenString string) (Claims, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Type != TokenTypeAccess {
		return Claims{}, fmt.Errorf("%w: unexpected token type %q", ErrInvalidToken, claims.Type)
	}
	if strings.TrimSpace(claims.ID) == "" {
		return Claims{}, fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}
	if err := validateProfile(claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

func validateProfile(claims Claims) error {
	p := claims.User
	if p.ID < 1 || strings.TrimSpace(p.Email) == "" || strings.TrimSpace(p.Username) == "" {
		return errors.New("malformed user profile")
	}
	if claims.Subject != strconv.Itoa(p.ID) {
		return errors.New("subject does not match profile")
	}
	return nil
}

// newTokenID derives a jti from the user id and a random value.
func newTokenID(userID int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", userID, uuid.NewString())))
	return hex.EncodeToString(sum[:])
}
