package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jobswipe/jobswipe/internal/api"
)

var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrSessionExpired   = errors.New("session expired, please log in again")
)

// Backend is the part of the API the store needs to authenticate.
type Backend interface {
	Login(ctx context.Context, username, password string) (*api.Tokens, error)
	RefreshAccess(ctx context.Context, refresh string) (*api.Tokens, error)
	Me(ctx context.Context) (*api.Profile, error)
}

// Store owns the session: tokens, role and profile. It is the only writer of
// the access token; everything else reads it through AccessToken and asks
// for a new one through Refresh.
type Store struct {
	mu      sync.RWMutex
	storage Storage
	backend Backend
	logger  *zap.Logger
	group   singleflight.Group

	access  string
	refresh string
	role    Role
	user    *api.Profile
}

// Open loads the persisted session. Unreadable storage yields an empty
// session rather than an error, so a corrupt file only forces a new login.
func Open(ctx context.Context, storage Storage, backend Backend, logger *zap.Logger) (*Store, error) {
	if storage == nil {
		return nil, errors.New("session storage is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{storage: storage, backend: backend, logger: logger}

	if err := s.load(ctx); err != nil {
		logger.Warn("discarding unreadable session", zap.Error(err))
		s.access, s.refresh, s.role, s.user = "", "", RoleNone, nil
	}

	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	access, _, err := s.storage.Get(ctx, KeyAccessToken)
	if err != nil {
		return err
	}

	refresh, _, err := s.storage.Get(ctx, KeyRefreshToken)
	if err != nil {
		return err
	}

	rawRole, _, err := s.storage.Get(ctx, KeyRole)
	if err != nil {
		return err
	}

	rawUser, ok, err := s.storage.Get(ctx, KeyUser)
	if err != nil {
		return err
	}

	s.access, s.refresh = access, refresh

	if role, err := ParseRole(rawRole); err == nil {
		s.role = role
	}

	if ok && rawUser != "" {
		user, err := api.UnmarshalProfile(rawUser)
		if err != nil {
			s.logger.Warn("ignoring unreadable stored profile", zap.Error(err))
		} else {
			s.user = user
		}
	}

	return nil
}

// SetBackend wires the API client after construction; the client in turn
// uses the store as its token source.
func (s *Store) SetBackend(backend Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.backend = backend
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.access
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.refresh
}

func (s *Store) Role() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.role
}

func (s *Store) User() *api.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil
	}
	user := *s.user
	return &user
}

func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.access != "" || s.refresh != ""
}

// SetAccessToken stores token; an empty token clears the key.
func (s *Store) SetAccessToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setAccessLocked(ctx, token)
}

func (s *Store) setAccessLocked(ctx context.Context, token string) error {
	if err := s.put(ctx, KeyAccessToken, token); err != nil {
		return err
	}
	s.access = token
	return nil
}

// SetRefreshToken stores token; an empty token clears the key.
func (s *Store) SetRefreshToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setRefreshLocked(ctx, token)
}

func (s *Store) setRefreshLocked(ctx context.Context, token string) error {
	if err := s.put(ctx, KeyRefreshToken, token); err != nil {
		return err
	}
	s.refresh = token
	return nil
}

func (s *Store) SetTokens(ctx context.Context, tokens *api.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tokens == nil {
		tokens = &api.Tokens{}
	}

	if err := s.setAccessLocked(ctx, tokens.Access); err != nil {
		return err
	}
	return s.setRefreshLocked(ctx, tokens.Refresh)
}

// SetRole stores role; RoleNone clears the key.
func (s *Store) SetRole(ctx context.Context, role Role) error {
	if role != RoleNone && !role.IsValid() {
		return fmt.Errorf("invalid role %q", string(role))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.put(ctx, KeyRole, string(role)); err != nil {
		return err
	}
	s.role = role
	return nil
}

// SetUser stores the profile; nil clears the key.
func (s *Store) SetUser(ctx context.Context, user *api.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user == nil {
		if err := s.storage.Delete(ctx, KeyUser); err != nil {
			return err
		}
		s.user = nil
		return nil
	}

	raw, err := api.MarshalProfile(user)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}

	if err := s.storage.Set(ctx, KeyUser, raw); err != nil {
		return err
	}

	copied := *user
	s.user = &copied
	return nil
}

func (s *Store) put(ctx context.Context, key, value string) error {
	if value == "" {
		return s.storage.Delete(ctx, key)
	}
	return s.storage.Set(ctx, key, value)
}

// Login authenticates, stores the token pair and then loads the profile to
// learn the role.
func (s *Store) Login(ctx context.Context, username, password string) (*api.Profile, error) {
	if s.backend == nil {
		return nil, errors.New("session backend is not configured")
	}

	tokens, err := s.backend.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	if err := s.SetTokens(ctx, tokens); err != nil {
		return nil, fmt.Errorf("saving tokens: %w", err)
	}

	profile, err := s.backend.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}

	if err := s.SetUser(ctx, profile); err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}

	if role, err := ParseRole(profile.Role); err == nil {
		if err := s.SetRole(ctx, role); err != nil {
			return nil, fmt.Errorf("saving role: %w", err)
		}
	} else {
		s.logger.Warn("backend returned a profile without a known role", zap.String("role", profile.Role))
	}

	s.logger.Debug("logged in", zap.String("user", profile.DisplayName()), zap.String("role", profile.Role))

	return profile, nil
}

// Refresh returns a fresh access token. Concurrent callers share a single
// refresh round trip, and a caller whose stale token was already replaced
// gets the replacement without another call. A failed refresh clears the
// whole session.
func (s *Store) Refresh(ctx context.Context, stale string) (string, error) {
	s.mu.RLock()
	current := s.access
	s.mu.RUnlock()

	if current != "" && current != stale {
		return current, nil
	}

	token, err, _ := s.group.Do("refresh", func() (any, error) {
		return s.doRefresh(ctx, stale)
	})
	if err != nil {
		return "", err
	}

	return token.(string), nil
}

func (s *Store) doRefresh(ctx context.Context, stale string) (string, error) {
	s.mu.RLock()
	current, refresh, backend := s.access, s.refresh, s.backend
	s.mu.RUnlock()

	if current != "" && current != stale {
		return current, nil
	}

	if refresh == "" {
		if err := s.Logout(ctx); err != nil {
			s.logger.Warn("clearing session", zap.Error(err))
		}
		return "", ErrNotAuthenticated
	}

	if backend == nil {
		return "", errors.New("session backend is not configured")
	}

	tokens, err := backend.RefreshAccess(ctx, refresh)
	if err != nil {
		s.logger.Info("token refresh rejected, clearing session", zap.Error(err))
		if lerr := s.Logout(ctx); lerr != nil {
			s.logger.Warn("clearing session", zap.Error(lerr))
		}
		return "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.setAccessLocked(ctx, tokens.Access); err != nil {
		return "", err
	}
	if tokens.Refresh != "" {
		if err := s.setRefreshLocked(ctx, tokens.Refresh); err != nil {
			return "", err
		}
	}

	s.logger.Debug("access token refreshed")

	return tokens.Access, nil
}

// Expiry returns the access token's expiry time.
func (s *Store) Expiry() (time.Time, error) {
	return TokenExpiry(s.AccessToken())
}

// EnsureFresh refreshes ahead of time when the access token expires within
// leeway, saving the 401 round trip.
func (s *Store) EnsureFresh(ctx context.Context, leeway time.Duration) error {
	access := s.AccessToken()
	if access == "" {
		if s.RefreshToken() == "" {
			return ErrNotAuthenticated
		}
		_, err := s.Refresh(ctx, "")
		return err
	}

	exp, err := TokenExpiry(access)
	if err != nil {
		// Opaque token: let the first 401 drive the refresh.
		return nil
	}

	if time.Until(exp) > leeway {
		return nil
	}

	s.logger.Debug("access token about to expire, refreshing", zap.Time("expires_at", exp))
	_, err = s.Refresh(ctx, access)
	return err
}

// Logout clears every persisted key.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access, s.refresh, s.role, s.user = "", "", RoleNone, nil

	return s.storage.Delete(ctx, KeyAccessToken, KeyRefreshToken, KeyRole, KeyUser)
}
