package client

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Routes the client hands to its caller after login and on 401.
const (
	LoginRoute   = "/login"
	AdminRoute   = "/admin"
	DoctorRoute  = "/doctor"
	PatientRoute = "/patient"
)

// HomeRoute is the landing route of a role.
func HomeRoute(role string) string {
	switch role {
	case "admin":
		return AdminRoute
	case "doctor":
		return DoctorRoute
	case "patient":
		return PatientRoute
	default:
		return LoginRoute
	}
}

// Identity is who the stored access token says the user is.
type Identity struct {
	ID   string
	Role string
}

// Session holds the access token between requests.
type Session interface {
	Token() string
	// User is nil when there is no token or it could not be decoded.
	User() *Identity
	SetToken(token string)
	ClearToken()
}

// decodeIdentity reads the token's claims without checking the signature;
// the server verifies it on every request. Failures are logged and yield nil.
func decodeIdentity(token string, log *zap.Logger) *Identity {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		log.Warn("could not decode access token", zap.Error(err))
		return nil
	}
	id, _ := claims["user_id"].(string)
	if id == "" {
		id, _ = claims["sub"].(string)
	}
	role, _ := claims["role"].(string)
	if id == "" || role == "" {
		log.Warn("access token has no user id or role")
		return nil
	}
	return &Identity{ID: id, Role: role}
}

// MemorySession keeps the token for the life of the process.
type MemorySession struct {
	mu    sync.RWMutex
	token string
	user  *Identity
	log   *zap.Logger
}

func NewMemorySession(log *zap.Logger) *MemorySession {
	if log == nil {
		log = zap.NewNop()
	}
	return &MemorySession{log: log}
}

func (s *MemorySession) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *MemorySession) User() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *MemorySession) SetToken(token string) {
	user := decodeIdentity(token, s.log)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user = token, user
}

func (s *MemorySession) ClearToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user = "", nil
}

// FileSession persists the raw token to a file so a CLI stays logged in
// across runs.
type FileSession struct {
	*MemorySession
	path string
}

// NewFileSession loads the token stored at path, if any.
func NewFileSession(path string, log *zap.Logger) *FileSession {
	s := &FileSession{MemorySession: NewMemorySession(log), path: path}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		s.log.Warn("could not read session file", zap.String("path", path), zap.Error(err))
	default:
		if token := strings.TrimSpace(string(raw)); token != "" {
			s.MemorySession.SetToken(token)
		}
	}
	return s
}

func (s *FileSession) SetToken(token string) {
	s.MemorySession.SetToken(token)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		s.log.Warn("could not create session directory", zap.String("path", s.path), zap.Error(err))
		return
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		s.log.Warn("could not write session file", zap.String("path", s.path), zap.Error(err))
	}
}

func (s *FileSession) ClearToken() {
	s.MemorySession.ClearToken()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("could not remove session file", zap.String("path", s.path), zap.Error(err))
	}
}

// Guard decides whether the session may enter a route restricted to roles.
// It returns the route to redirect to when access is denied: the login page
// without a user, the user's home page when the role does not match.
func Guard(s Session, roles ...string) (redirect string, ok bool) {
	user := s.User()
	if user == nil {
		return LoginRoute, false
	}
	if len(roles) == 0 {
		return "", true
	}
	for _, r := range roles {
		if r == user.Role {
			return "", true
		}
	}
	return HomeRoute(user.Role), false
}
