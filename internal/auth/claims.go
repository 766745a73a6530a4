package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the access token payload. UserID and Roles are absent in
// tokens minted before claims were embedded.
type AccessClaims struct {
	UserID *int64   `json:"userId,omitempty"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) embedded() bool { return c.UserID != nil && c.Roles != nil }

// DecodedToken is either EmbeddedClaims or SubjectOnly.
type DecodedToken interface {
	SubjectName() string
	isDecodedToken()
}

type EmbeddedClaims struct {
	SubjectID int64
	Subject   string
	Roles     []string
	ExpiresAt time.Time
}

func (c EmbeddedClaims) SubjectName() string { return c.Subject }
func (EmbeddedClaims) isDecodedToken()       {}

// SubjectOnly is a legacy token carrying nothing but the account email.
type SubjectOnly struct {
	Subject   string
	ExpiresAt time.Time
}

func (c SubjectOnly) SubjectName() string { return c.Subject }
func (SubjectOnly) isDecodedToken()       {}
