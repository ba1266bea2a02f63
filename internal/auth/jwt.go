package auth

import (
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gocomet/ride-dispatch/internal/domain/identity"
	"github.com/gocomet/ride-dispatch/pkg/errors"
)

// Verifier is the identity-verification collaborator: it turns a bearer
// token into an authenticated identity or refuses it.
type Verifier interface {
	Verify(token string) (identity.Identity, error)
}

// Claims is the canonical token payload: a role plus registered claims
// with the user id as subject.
type Claims struct {
	Role identity.Role `json:"role"`
	jwtlib.RegisteredClaims
}

// JWTVerifier validates HS256 tokens with a shared secret.
type JWTVerifier struct {
	secret []byte
	parser *jwtlib.Parser
}

// NewJWTVerifier creates a verifier pinned to HS256.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{
		secret: []byte(secret),
		parser: jwtlib.NewParser(jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()})),
	}
}

// Verify implements Verifier. Every failure maps to
// AuthenticationFailed; the caller refuses the connection and never
// creates a session.
func (v *JWTVerifier) Verify(tokenString string) (identity.Identity, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(t *jwtlib.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return identity.Identity{}, errors.AuthenticationFailed("Invalid token", err)
	}
	if !token.Valid {
		return identity.Identity{}, errors.AuthenticationFailed("Invalid token", nil)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return identity.Identity{}, errors.AuthenticationFailed("Token subject is not a user id", err)
	}
	if !claims.Role.IsValid() {
		return identity.Identity{}, errors.AuthenticationFailed("Token carries an unknown role", nil)
	}

	return identity.Identity{UserID: userID, Role: claims.Role}, nil
}

// Issue signs a token for the given user; used by tests and tooling.
func (v *JWTVerifier) Issue(userID uuid.UUID, role identity.Role, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(v.secret)
}

// TokenFromRequest reads "Authorization: Bearer <token>" or, for
// WebSocket clients that cannot set headers, the "token" query param.
func TokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer "), nil
		}
		return "", errors.AuthenticationFailed("Authorization must use the Bearer scheme", nil)
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t, nil
	}
	return "", errors.AuthenticationFailed("Missing bearer token", nil)
}
