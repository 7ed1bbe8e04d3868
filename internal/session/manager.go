package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoSession is returned by operations that need an authenticated user
var ErrNoSession = errors.New("no active session")

// Reasons attached to session changes
const (
	ReasonLogin       = "login"
	ReasonRegister    = "register"
	ReasonRestored    = "restored"
	ReasonLogout      = "logout"
	ReasonAuthExpired = "auth_expired"
)

// Authenticator is the part of the API client the manager needs
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*models.LoginResponse, error)
	Register(ctx context.Context, profile models.RegisterRequest) error
}

// EventSink receives session activity events
type EventSink interface {
	PublishSessionEvent(ctx context.Context, event *models.SessionEvent)
}

// Change describes a session transition. Session is nil when it ended.
type Change struct {
	Session *models.Session
	Reason  string
}

// Started reports whether the change began a session
func (c Change) Started() bool {
	return c.Session != nil
}

// Listener is called after every session transition, outside the manager lock
type Listener func(ctx context.Context, change Change)

// Manager owns the current session and its persisted copy
type Manager struct {
	auth     Authenticator
	persist  *store.Persistent
	validate *validator.Validate
	events   EventSink
	logger   *zap.Logger
	now      func() time.Time

	mu         sync.RWMutex
	current    *models.Session
	generation uint64
	listeners  []Listener
}

// NewManager creates a session manager
func NewManager(auth Authenticator, persist *store.Persistent) *Manager {
	return &Manager{
		auth:     auth,
		persist:  persist,
		validate: validator.New(),
		logger:   util.GetLogger(),
		now:      time.Now,
	}
}

// WithEvents sets the activity event sink
func (m *Manager) WithEvents(sink EventSink) *Manager {
	m.events = sink
	return m
}

// OnChange registers a listener for session transitions
func (m *Manager) OnChange(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Current returns a copy of the active session, or nil for a guest
func (m *Manager) Current() *models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil
	}
	s := *m.current
	return &s
}

// Token returns the bearer token of the active session
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return ""
	}
	return m.current.Token
}

// Generation increases on every session transition. Callers capture it
// before a request and compare afterwards to drop stale responses.
func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// Restore loads a persisted session. Expired or incomplete sessions are
// removed from the store.
func (m *Manager) Restore(ctx context.Context) bool {
	var token string
	var user models.User
	hasToken := m.persist.Load(ctx, store.KeyToken, &token)
	hasUser := m.persist.Load(ctx, store.KeyUser, &user)

	if !hasToken || token == "" || !hasUser {
		if hasToken || hasUser {
			m.logger.Info("Dropping incomplete persisted session")
			m.forget(ctx)
		}
		return false
	}

	if claims, ok := readClaims(token, m.now()); ok && claims.Expired {
		m.logger.Info("Dropping expired persisted session", zap.String("email", user.Email))
		m.forget(ctx)
		return false
	}

	m.begin(ctx, &models.Session{User: user, Token: token}, ReasonRestored)
	return true
}

// Login authenticates and persists the resulting session
func (m *Manager) Login(ctx context.Context, creds models.Credentials) (*models.Session, error) {
	ctx, span := util.StartSpan(ctx, "SessionManager.Login")
	defer span.End()

	creds.Email = strings.TrimSpace(creds.Email)
	if err := m.validate.Struct(creds); err != nil {
		return nil, &ValidationError{Reason: "Email and password are required", Err: err}
	}

	return m.login(ctx, creds, ReasonLogin)
}

// Register creates an account, then logs in with the same credentials
func (m *Manager) Register(ctx context.Context, profile models.RegisterRequest) (*models.Session, error) {
	ctx, span := util.StartSpan(ctx, "SessionManager.Register")
	defer span.End()

	profile.Email = strings.TrimSpace(profile.Email)
	if err := m.validate.Struct(profile); err != nil {
		return nil, &ValidationError{Reason: "A valid email and a password of at least 6 characters are required", Err: err}
	}

	if err := m.auth.Register(ctx, profile); err != nil {
		util.SessionEventsTotal.WithLabelValues("register_failed").Inc()
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	return m.login(ctx, models.Credentials{Email: profile.Email, Password: profile.Password}, ReasonRegister)
}

func (m *Manager) login(ctx context.Context, creds models.Credentials, reason string) (*models.Session, error) {
	resp, err := m.auth.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		util.SessionEventsTotal.WithLabelValues("login_failed").Inc()
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, errors.New("login failed: backend returned no access token")
	}

	user := models.User{ID: resp.UserID, Email: creds.Email}
	if claims, ok := readClaims(resp.AccessToken, m.now()); ok {
		if user.ID == 0 {
			user.ID = claims.UserID
		}
		if user.Email == "" {
			user.Email = claims.Subject
		}
	}

	sess := &models.Session{User: user, Token: resp.AccessToken}

	if err := m.persist.Save(ctx, store.KeyToken, sess.Token); err != nil {
		m.logger.Error("Failed to persist session token", zap.Error(err))
	}
	if err := m.persist.Save(ctx, store.KeyUser, sess.User); err != nil {
		m.logger.Error("Failed to persist session user", zap.Error(err))
	}

	m.begin(ctx, sess, reason)
	return m.Current(), nil
}

// Logout ends the session and removes it from the store
func (m *Manager) Logout(ctx context.Context) {
	m.end(ctx, ReasonLogout, "")
}

// HandleUnauthorized is the global reaction to an unauthorized response for
// a request sent with token: the session is cleared from memory and from the
// store. A rejected token that no longer belongs to the current session is
// a late response and leaves the session alone. It reports whether the
// session was ended.
func (m *Manager) HandleUnauthorized(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	if !m.end(ctx, ReasonAuthExpired, token) {
		m.logger.Debug("Ignoring unauthorized response for a previous session")
		return false
	}
	return true
}

func (m *Manager) begin(ctx context.Context, sess *models.Session, reason string) {
	m.mu.Lock()
	m.current = sess
	m.generation++
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	util.SessionEventsTotal.WithLabelValues(reason).Inc()
	m.logger.Info("Session started",
		zap.Int64("user_id", sess.User.ID),
		zap.String("reason", reason))

	m.publish(ctx, models.EventTypeSessionStarted, sess.User, reason)

	change := Change{Session: m.Current(), Reason: reason}
	for _, l := range listeners {
		l(ctx, change)
	}
}

// end clears the session. With a non-empty token only a session holding
// that token is ended.
func (m *Manager) end(ctx context.Context, reason, token string) bool {
	m.mu.Lock()
	prev := m.current
	if token != "" && (prev == nil || prev.Token != token) {
		m.mu.Unlock()
		return false
	}
	m.current = nil
	if prev != nil {
		m.generation++
	}
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	m.forget(ctx)

	if prev == nil {
		return false
	}

	util.SessionEventsTotal.WithLabelValues(reason).Inc()
	m.logger.Info("Session ended",
		zap.Int64("user_id", prev.User.ID),
		zap.String("reason", reason))

	m.publish(ctx, models.EventTypeSessionEnded, prev.User, reason)

	change := Change{Reason: reason}
	for _, l := range listeners {
		l(ctx, change)
	}
	return true
}

func (m *Manager) forget(ctx context.Context) {
	if err := m.persist.Remove(ctx, store.KeyToken, store.KeyUser); err != nil {
		m.logger.Error("Failed to remove persisted session", zap.Error(err))
	}
}

func (m *Manager) publish(ctx context.Context, eventType string, user models.User, reason string) {
	if m.events == nil {
		return
	}
	m.events.PublishSessionEvent(ctx, &models.SessionEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: m.now(),
		},
		UserID: user.ID,
		Email:  user.Email,
		Reason: reason,
	})
}
