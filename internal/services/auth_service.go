package services

import (
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"buntee/internal/config"
	"buntee/internal/store"
)

var (
	ErrAuthenticationFailed = errors.New("invalid email or password")
	ErrUnauthorized         = errors.New("authentication required")
)

const tokenIssuer = "buntee"

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// Principal converts the claims into a store principal.
func (c *Claims) Principal() store.Principal {
	return store.Principal{Email: c.Email, Admin: c.IsAdmin}
}

// AuthService signs staff in against the configured admin accounts.
type AuthService struct {
	secret []byte
	ttl    time.Duration
	admins map[string][]byte // Key: lower-cased email
	now    func() time.Time
}

// NewAuthService creates an AuthService from the auth config section.
func NewAuthService(cfg config.Auth) *AuthService {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	admins := make(map[string][]byte, len(cfg.Admins))
	for _, a := range cfg.Admins {
		admins[strings.ToLower(strings.TrimSpace(a.Email))] = []byte(a.PasswordHash)
	}
	return &AuthService{secret: []byte(cfg.JWTSecret), ttl: ttl, admins: admins, now: time.Now}
}

// HashPassword returns the bcrypt hash to put into the config file.
func HashPassword(pwd string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hashing password")
	}
	return string(hash), nil
}

// SignIn checks the credentials and returns a signed token.
func (s *AuthService) SignIn(email, pwd string) (string, *Claims, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, ok := s.admins[email]
	if !ok || len(s.secret) == 0 {
		return "", nil, ErrAuthenticationFailed
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(pwd)); err != nil {
		return "", nil, ErrAuthenticationFailed
	}

	now := s.now()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    tokenIssuer,
			Subject:   email,
			ExpiresAt: now.Add(s.ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email:   email,
		IsAdmin: true,
	}
	token, err := s.GenerateToken(claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// GenerateToken generates a signed JWT token string representing the Claims.
func (s *AuthService) GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Verify parses a token and checks its signature, expiry and that its
// subject is still a configured admin.
func (s *AuthService) Verify(raw string) (*Claims, error) {
	if raw == "" || len(s.secret) == 0 {
		return nil, ErrUnauthorized
	}
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}
	if _, ok := s.admins[claims.Email]; !ok {
		return nil, ErrUnauthorized
	}
	return claims, nil
}
