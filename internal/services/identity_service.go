package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// IdentityService issues guest identity tokens. There are no accounts: a
// participant asks for an identity once, gets a stable author ID signed into
// a JWT, and presents it on every session operation. The author ID is what
// the replay engine compares against to suppress double-drawing.
type IdentityService struct {
	jwtSecret string
	jwtExpiry time.Duration
}

type GuestIdentity struct {
	Token       string    `json:"token"`
	AuthorID    uuid.UUID `json:"author_id"`
	DisplayName string    `json:"display_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type IdentityClaims struct {
	AuthorID    uuid.UUID
	DisplayName string
}

func NewIdentityService(jwtSecret string, jwtExpiry time.Duration) *IdentityService {
	return &IdentityService{jwtSecret: jwtSecret, jwtExpiry: jwtExpiry}
}

func (s *IdentityService) IssueGuestIdentity(displayName string) (*GuestIdentity, error) {
	authorID := uuid.New()
	expiresAt := time.Now().Add(s.jwtExpiry)

	claims := jwt.MapClaims{
		"sub":  authorID.String(),
		"name": displayName,
		"exp":  expiresAt.Unix(),
		"iat":  time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign identity token: %w", err)
	}

	return &GuestIdentity{
		Token:       signed,
		AuthorID:    authorID,
		DisplayName: displayName,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *IdentityService) VerifyToken(tokenString string) (*IdentityClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	authorIDStr, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	authorID, err := uuid.Parse(authorIDStr)
	if err != nil {
		return nil, ErrInvalidToken
	}

	displayName, _ := claims["name"].(string)

	return &IdentityClaims{
		AuthorID:    authorID,
		DisplayName: displayName,
	}, nil
}
