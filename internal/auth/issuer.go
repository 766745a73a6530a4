package auth

import (
	"errors"
	"fmt"
	"time"

	domainauth "github.com/NordCoder/campauth/internal/domain/auth"
	"github.com/golang-jwt/jwt/v5"
)

const minSecretLen = 32

var (
	ErrTokenInvalid     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrNoEmbeddedClaims = errors.New("token carries no embedded claims")
	ErrWeakSecret       = fmt.Errorf("signing secret must be at least %d bytes", minSecretLen)
)

type Config struct {
	Secret    []byte
	AccessTTL time.Duration
	Now       func() time.Time
}

// Issuer mints and validates HS256 access tokens. It is safe for concurrent use.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, ErrWeakSecret
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("access ttl must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Issuer{
		secret: secret,
		ttl:    cfg.AccessTTL,
		now:    cfg.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(cfg.Now),
		),
	}, nil
}

func (i *Issuer) AccessTTL() time.Duration { return i.ttl }

func (i *Issuer) IssueFromIdentity(id domainauth.Identity) (string, error) {
	return i.IssueFromClaims(id.ID, id.Subject, id.Roles)
}

func (i *Issuer) IssueFromClaims(subjectID int64, subject string, roles []string) (string, error) {
	if subject == "" {
		return "", errors.New("empty subject")
	}
	// nil roles would encode as null and read back as a legacy token
	rs := make([]string, len(roles))
	copy(rs, roles)

	now := i.now()
	uid := subjectID
	claims := AccessClaims{
		UserID: &uid,
		Roles:  rs,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign access: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and expiry and returns the token shape.
func (i *Issuer) Decode(token string) (DecodedToken, error) {
	c, err := i.parse(token)
	if err != nil {
		return nil, err
	}
	exp := c.ExpiresAt.Time
	if c.embedded() {
		return EmbeddedClaims{
			SubjectID: *c.UserID,
			Subject:   c.Subject,
			Roles:     c.Roles,
			ExpiresAt: exp,
		}, nil
	}
	return SubjectOnly{Subject: c.Subject, ExpiresAt: exp}, nil
}

func (i *Issuer) Validate(token string) bool {
	_, err := i.parse(token)
	return err == nil
}

func (i *Issuer) HasEmbeddedClaims(token string) bool {
	d, err := i.Decode(token)
	if err != nil {
		return false
	}
	_, ok := d.(EmbeddedClaims)
	return ok
}

func (i *Issuer) SubjectName(token string) (string, error) {
	d, err := i.Decode(token)
	if err != nil {
		return "", err
	}
	return d.SubjectName(), nil
}

func (i *Issuer) SubjectID(token string) (int64, error) {
	c, err := i.embeddedClaims(token)
	if err != nil {
		return 0, err
	}
	return c.SubjectID, nil
}

func (i *Issuer) Roles(token string) ([]string, error) {
	c, err := i.embeddedClaims(token)
	if err != nil {
		return nil, err
	}
	return c.Roles, nil
}

func (i *Issuer) embeddedClaims(token string) (EmbeddedClaims, error) {
	d, err := i.Decode(token)
	if err != nil {
		return EmbeddedClaims{}, err
	}
	c, ok := d.(EmbeddedClaims)
	if !ok {
		return EmbeddedClaims{}, ErrNoEmbeddedClaims
	}
	return c, nil
}

func (i *Issuer) parse(token string) (*AccessClaims, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}
	var c AccessClaims
	_, err := i.parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if c.Subject == "" || c.ExpiresAt == nil {
		return nil, ErrTokenInvalid
	}
	return &c, nil
}
