package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer = "g4m3ify-proxy"
	// revokedCapacity bounds the signed-out token set. Evicted entries are
	// old enough that their tokens have usually expired anyway.
	revokedCapacity = 10_000
)

type memoryUser struct {
	id           string
	email        string
	displayName  string
	passwordHash []byte
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Memory keeps users in process and issues HS256 session tokens. Nothing is
// persisted; it is meant for development and tests.
type Memory struct {
	mu      sync.RWMutex
	byEmail map[string]*memoryUser
	byID    map[string]*memoryUser

	secret  []byte
	ttl     time.Duration
	cost    int
	revoked *lru.Cache[string, time.Time]
	now     func() time.Time
}

// NewMemory creates a Memory provider. An empty secret is replaced by a
// random one, so tokens do not outlive the process.
func NewMemory(secret []byte, ttl time.Duration) (*Memory, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	revoked, err := lru.New[string, time.Time](revokedCapacity)
	if err != nil {
		return nil, fmt.Errorf("create revocation cache: %w", err)
	}
	return &Memory{
		byEmail: make(map[string]*memoryUser),
		byID:    make(map[string]*memoryUser),
		secret:  secret,
		ttl:     ttl,
		cost:    bcrypt.DefaultCost,
		revoked: revoked,
		now:     time.Now,
	}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// SignUp registers a new user and signs them in.
func (m *Memory) SignUp(_ context.Context, email, password string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	m.mu.Lock()
	if _, exists := m.byEmail[email]; exists {
		m.mu.Unlock()
		return nil, ErrEmailTaken
	}
	u := &memoryUser{
		id:           uuid.NewString(),
		email:        email,
		passwordHash: hash,
	}
	m.byEmail[email] = u
	m.byID[u.id] = u
	m.mu.Unlock()

	return m.issue(u.id, u.email, "")
}

// SignIn checks credentials and issues a new session token.
func (m *Memory) SignIn(_ context.Context, email, password string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	m.mu.RLock()
	u, ok := m.byEmail[email]
	var (
		id, name string
		hash     []byte
	)
	if ok {
		id, name, hash = u.id, u.displayName, u.passwordHash
	}
	m.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return m.issue(id, email, name)
}

// Lookup resolves a session token to its user.
func (m *Memory) Lookup(_ context.Context, token string) (*User, error) {
	claims, err := m.parse(token)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[claims.Subject]
	if !ok {
		return nil, ErrUnauthenticated
	}
	return &User{ID: u.id, Email: u.email, DisplayName: u.displayName, Token: token}, nil
}

// UpdateProfile sets the display name of the token's user.
func (m *Memory) UpdateProfile(_ context.Context, token, displayName string) (*User, error) {
	claims, err := m.parse(token)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[claims.Subject]
	if !ok {
		return nil, ErrUnauthenticated
	}
	u.displayName = strings.TrimSpace(displayName)
	return &User{ID: u.id, Email: u.email, DisplayName: u.displayName, Token: token}, nil
}

// SignOut revokes the token until it would have expired.
func (m *Memory) SignOut(_ context.Context, token string) error {
	claims, err := m.parse(token)
	if err != nil {
		return err
	}
	m.revoked.Add(claims.ID, claims.ExpiresAt.Time)
	return nil
}

func (m *Memory) issue(id, email, displayName string) (*User, error) {
	now := m.now()
	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	return &User{ID: id, Email: email, DisplayName: displayName, Token: signed}, nil
}

func (m *Memory) parse(token string) (*sessionClaims, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", ErrUnauthenticated)
		}
		return nil, ErrUnauthenticated
	}
	if _, revoked := m.revoked.Get(claims.ID); revoked {
		return nil, fmt.Errorf("%w: signed out", ErrUnauthenticated)
	}
	return claims, nil
}
