package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shrimpsizemoose/trekker/logger"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
	"github.com/shrimpsizemoose/attendo/internal/metrics"
)

const loginTTL = 10 * time.Minute

var (
	ErrNoSession    = errors.New("no active session")
	ErrUnknownState = errors.New("unknown or expired login state")
)

// LocalUser is the identity held when authentication is disabled.
var LocalUser = gateway.User{ID: "local", Email: "local@localhost"}

// State is the current identity of the operator, or none.
type State struct {
	auth     gateway.Authenticator
	broker   Broker
	provider string
	enabled  bool

	mu      sync.RWMutex
	session *gateway.Session
	// login state -> PKCE verifier, forgotten after loginTTL
	pending *cache.Cache
	// concurrent refreshes of one expired token share a gateway call
	refreshes singleflight.Group

	cancel func()
	done   chan struct{}
}

func NewState(auth gateway.Authenticator, broker Broker, provider string) *State {
	return &State{
		auth:     auth,
		broker:   broker,
		provider: provider,
		enabled:  true,
		pending:  cache.New(loginTTL, time.Minute),
	}
}

// NewLocalState returns a State that always holds LocalUser.
func NewLocalState() *State {
	return &State{
		pending: cache.New(loginTTL, time.Minute),
		session: &gateway.Session{User: LocalUser},
	}
}

func (s *State) Enabled() bool {
	return s.enabled
}

// Start restores the latest published session and follows auth events until
// Close is called.
func (s *State) Start(ctx context.Context) error {
	if !s.enabled {
		return nil
	}

	latest, err := s.broker.Latest(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	if latest != nil {
		logger.Info.Printf("Restored session of %s", latest.User.Email)
		s.setSession(latest)
	}

	events, cancel, err := s.broker.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to auth events: %w", err)
	}
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		for ev := range events {
			s.apply(ev)
		}
	}()
	return nil
}

func (s *State) Close() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}
}

func (s *State) apply(ev Event) {
	metrics.AuthEvents.WithLabelValues(string(ev.Kind)).Inc()
	switch ev.Kind {
	case SignedIn, TokenRefreshed:
		if ev.Session != nil {
			s.setSession(ev.Session)
		}
	case SignedOut:
		s.setSession(nil)
	default:
		logger.Debug.Printf("Ignoring auth event %q", ev.Kind)
	}
}

func (s *State) setSession(session *gateway.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

func (s *State) current() *gateway.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// User returns the identity currently held, without asking the gateway.
func (s *State) User() *gateway.User {
	session := s.current()
	if session == nil {
		return nil
	}
	u := session.User
	return &u
}

func (s *State) Known() bool {
	return s.current() != nil
}

// Valid reports whether the held session carries an unexpired access token.
// Without authentication the local identity is always valid.
func (s *State) Valid() bool {
	if !s.enabled {
		return true
	}
	session := s.current()
	return session != nil && session.Token.Valid()
}

// Token implements oauth2.TokenSource with the access token of the held
// session, refreshing it first when it has expired.
func (s *State) Token() (*oauth2.Token, error) {
	session := s.current()
	if session == nil || session.Token == nil {
		return nil, ErrNoSession
	}
	if session.Token.Valid() {
		return session.Token, nil
	}

	ctx := context.Background()
	refreshed, err := s.refresh(ctx)
	if err != nil {
		if errors.Is(err, gateway.ErrNetwork) {
			return nil, fmt.Errorf("failed to refresh token: %w", err)
		}
		s.drop(ctx, "refresh", err)
		return nil, ErrNoSession
	}
	return refreshed.Token, nil
}

// refresh trades the refresh token of the held session for a new session
// unless the held token is valid again by the time the call runs.
func (s *State) refresh(ctx context.Context) (*gateway.Session, error) {
	v, err, _ := s.refreshes.Do("refresh", func() (any, error) {
		session := s.current()
		if session == nil || session.Token == nil {
			return nil, ErrNoSession
		}
		if session.Token.Valid() {
			return session, nil
		}
		if session.Token.RefreshToken == "" {
			return nil, gateway.NewError("refresh", "", gateway.ErrUnauthorized, fmt.Errorf("access token expired without a refresh token"))
		}

		refreshed, err := s.auth.Refresh(ctx, session.Token.RefreshToken)
		if err != nil {
			return nil, err
		}
		s.setSession(refreshed)
		s.publish(ctx, Event{Kind: TokenRefreshed, Session: refreshed})
		logger.Debug.Printf("Refreshed access token of %s", refreshed.User.Email)
		return refreshed, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*gateway.Session), nil
}

// FetchUser asks the gateway who the held session belongs to, refreshing an
// expired access token first. A rejected session is dropped and yields a nil
// identity; only network failures are returned as errors.
func (s *State) FetchUser(ctx context.Context) (*gateway.User, error) {
	if !s.enabled {
		u := LocalUser
		return &u, nil
	}

	session := s.current()
	if session == nil || session.Token == nil {
		return nil, nil
	}

	if !session.Token.Valid() {
		refreshed, err := s.refresh(ctx)
		if err != nil {
			return s.reject(ctx, "refresh", err)
		}
		session = refreshed
	}

	user, err := s.auth.User(ctx, session.Token.AccessToken)
	if err != nil {
		return s.reject(ctx, "user lookup", err)
	}

	s.mu.Lock()
	if s.session != nil {
		updated := *s.session
		updated.User = *user
		s.session = &updated
	}
	s.mu.Unlock()
	return user, nil
}

func (s *State) reject(ctx context.Context, step string, err error) (*gateway.User, error) {
	if errors.Is(err, gateway.ErrNetwork) {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	s.drop(ctx, step, err)
	return nil, nil
}

func (s *State) drop(ctx context.Context, step string, err error) {
	logger.Info.Printf("Dropping session after failed %s: %v", step, err)
	s.setSession(nil)
	s.publish(ctx, Event{Kind: SignedOut})
}

// Login starts an OAuth sign-in and returns the provider URL to send the
// browser to.
func (s *State) Login(redirectTo string) (string, error) {
	if !s.enabled {
		return "", fmt.Errorf("authentication is disabled")
	}

	state := uuid.NewString()
	authURL, verifier := s.auth.SignInURL(s.provider, redirectTo, state)

	s.pending.SetDefault(state, verifier)

	return authURL, nil
}

// CompleteLogin exchanges the code returned by the provider for a session.
func (s *State) CompleteLogin(ctx context.Context, state, code string) (*gateway.User, error) {
	s.mu.Lock()
	v, ok := s.pending.Get(state)
	s.pending.Delete(state)
	s.mu.Unlock()
	if !ok {
		return nil, ErrUnknownState
	}
	verifier := v.(string)

	session, err := s.auth.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	s.setSession(session)
	s.publish(ctx, Event{Kind: SignedIn, Session: session})
	logger.Info.Printf("Signed in as %s", session.User.Email)

	u := session.User
	return &u, nil
}

// Logout signs out at the gateway and clears the held session. The session
// is cleared even when the gateway call fails.
func (s *State) Logout(ctx context.Context) error {
	if !s.enabled {
		return nil
	}

	session := s.current()
	if session == nil {
		return nil
	}

	var err error
	if session.Token != nil {
		if err = s.auth.SignOut(ctx, session.Token.AccessToken); err != nil {
			logger.Error.Printf("Gateway sign out failed: %v", err)
			err = fmt.Errorf("failed to sign out: %w", err)
		}
	}

	s.setSession(nil)
	s.publish(ctx, Event{Kind: SignedOut})
	logger.Info.Printf("Signed out %s", session.User.Email)
	return err
}

func (s *State) publish(ctx context.Context, ev Event) {
	if err := s.broker.Publish(ctx, ev); err != nil {
		logger.Error.Printf("Failed to publish %s: %v", ev.Kind, err)
	}
}
