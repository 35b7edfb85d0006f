package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Common errors for JWT operations.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrTokenSigningFailed  = errors.New("failed to sign token")
	ErrInvalidSecretLength = errors.New("JWT secret must be at least 32 characters")
)

// MinSecretLength is the shortest accepted HMAC secret.
const MinSecretLength = 32

// JWTConfig holds configuration for a Bearer token realm.
type JWTConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	Secret string

	// Issuer is the token issuer claim. Default: "hostkit"
	Issuer string

	// TokenDuration is the lifetime of issued tokens. Default: 1 hour.
	TokenDuration time.Duration
}

// Claims are the JWT claims issued for a principal.
type Claims struct {
	jwt.RegisteredClaims

	Realm string   `json:"realm"`
	Roles []string `json:"roles,omitempty"`
}

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// JWTManager authenticates Bearer tokens for one realm and issues tokens
// to accounts of that realm.
type JWTManager struct {
	realm    string
	config   JWTConfig
	accounts *StaticManager
	now      func() time.Time
}

var _ Manager = (*JWTManager)(nil)

// NewJWTManager creates a JWT manager. users may be empty, in which case
// the manager only validates tokens issued elsewhere with the same secret.
func NewJWTManager(realm string, config JWTConfig, users []User) (*JWTManager, error) {
	if len(config.Secret) < MinSecretLength {
		return nil, ErrInvalidSecretLength
	}

	if config.Issuer == "" {
		config.Issuer = "hostkit"
	}
	if config.TokenDuration == 0 {
		config.TokenDuration = time.Hour
	}

	accounts, err := NewStaticManager(realm, users)
	if err != nil {
		return nil, err
	}

	return &JWTManager{realm: realm, config: config, accounts: accounts, now: time.Now}, nil
}

func (m *JWTManager) Realm() string { return m.realm }

func (m *JWTManager) Challenge() string {
	return "Bearer realm=" + strconv.Quote(m.realm)
}

// Login verifies username/password and issues a token for the account.
func (m *JWTManager) Login(username, password string) (*Token, error) {
	p, err := m.accounts.Verify(username, password)
	if err != nil {
		return nil, err
	}
	return m.Issue(p)
}

// Issue signs a token for p.
func (m *JWTManager) Issue(p *Principal) (*Token, error) {
	now := m.now()
	expiresAt := now.Add(m.config.TokenDuration)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   p.Name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Realm: m.realm,
		Roles: p.Roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.config.Secret))
	if err != nil {
		return nil, ErrTokenSigningFailed
	}

	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(m.config.TokenDuration.Seconds()),
		ExpiresAt:   expiresAt,
	}, nil
}

// ValidateToken validates a JWT token and returns the claims.
// Tokens issued for another realm or by another issuer are rejected.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.Secret), nil
	}, jwt.WithIssuer(m.config.Issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Realm != m.realm {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (m *JWTManager) Authenticate(r *http.Request) (*Principal, error) {
	tokenString, ok := extractBearerToken(r)
	if !ok {
		return nil, ErrNoCredentials
	}

	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	return &Principal{Name: claims.Subject, Realm: claims.Realm, Roles: claims.Roles}, nil
}

// extractBearerToken extracts the token from a Bearer Authorization header.
func extractBearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}

	return parts[1], true
}
