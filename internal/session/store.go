package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSession is returned when no session has been saved yet.
var ErrNoSession = errors.New("no active session, run login first")

// Identity is what the client knows about the logged-in user,
// recovered from the bearer token claims.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

// Session is the persisted login state.
type Session struct {
	Token    string   `json:"token"`
	Identity Identity `json:"identity"`
}

// Store persists the bearer session to a JSON file. It is the single owner
// of the token; the REST client and the realtime manager read through it
// instead of reaching into ambient state.
type Store struct {
	path string

	mu     sync.Mutex
	cached *Session
}

// NewStore builds a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save normalizes and persists a freshly issued token, deriving the user
// identity from its claims.
func (s *Store) Save(token string) (*Session, error) {
	token = Normalize(token)
	if token == "" {
		return nil, errors.New("empty token")
	}

	sess := &Session{
		Token:    token,
		Identity: identityFromToken(token),
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return nil, fmt.Errorf("write session: %w", err)
	}

	s.mu.Lock()
	s.cached = sess
	s.mu.Unlock()
	return sess, nil
}

// Current loads the persisted session, caching it for later reads.
func (s *Store) Current() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return s.cached, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	sess.Token = Normalize(sess.Token)
	if sess.Token == "" {
		return nil, ErrNoSession
	}

	s.cached = &sess
	return s.cached, nil
}

// Token returns the normalized bearer token, or ErrNoSession.
func (s *Store) Token() (string, error) {
	sess, err := s.Current()
	if err != nil {
		return "", err
	}
	return sess.Token, nil
}

// Clear removes the persisted session. Safe to call when none exists.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Normalize strips surrounding quotes and any pre-existing "Bearer " prefix
// so the stored value is always the raw token.
func Normalize(raw string) string {
	t := strings.TrimSpace(raw)
	t = strings.Trim(t, `"`)
	if len(t) >= 7 && strings.EqualFold(t[:7], "bearer ") {
		t = strings.TrimSpace(t[7:])
	}
	return t
}

// ExpiresAt returns the token expiry, or zero time when the token carries
// no exp claim or cannot be parsed.
func (s *Session) ExpiresAt() time.Time {
	claims := parseClaims(s.Token)
	if claims == nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// identityFromToken extracts user identity from token claims without
// verifying the signature: the client holds no signing secret, the backend
// remains the authority.
func identityFromToken(token string) Identity {
	claims := parseClaims(token)
	if claims == nil {
		return Identity{}
	}

	id := Identity{
		UserID:   claimString(claims, "user_id", "userId", "sub"),
		Username: claimString(claims, "username", "preferred_username"),
		Name:     claimString(claims, "name"),
	}
	return id
}

func parseClaims(token string) jwt.MapClaims {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

func claimString(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
