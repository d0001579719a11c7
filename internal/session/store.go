// Package session owns the authentication state of one browser session.
//
// The Store is the only writer of State. Every async operation remembers the
// epoch it started under; adopting a session and ending one advance the epoch,
// and results that come back under an older epoch are dropped. Readers observe
// changes through Subscribe.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lufespi/gestor-academico/internal/apperr"
)

var ErrClosed = errors.New("session store closed")

// initialEpoch is the epoch of a fresh store. Start resolves against it so a
// session adopted before Start runs is never overwritten.
const initialEpoch uint64 = 0

const revokeTimeout = 5 * time.Second

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProfileRetry bounds how often a profile fetch is retried after network
// failures before the profile is settled as absent.
func WithProfileRetry(attempts int, backoff time.Duration) Option {
	return func(s *Store) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if backoff >= 0 {
			s.backoff = backoff
		}
	}
}

type Store struct {
	backend  Backend
	logger   *slog.Logger
	attempts int
	backoff  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	reauth singleflight.Group

	mu      sync.Mutex
	state   State
	epoch   uint64
	creds   Credentials
	acted   bool
	subs    map[int]chan State
	nextSub int
	closed  bool
}

func NewStore(backend Backend, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		backend:  backend,
		logger:   slog.Default(),
		attempts: 3,
		backoff:  500 * time.Millisecond,
		ctx:      ctx,
		cancel:   cancel,
		state:    State{Loading: true},
		subs:     make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds.AccessToken
}

func (s *Store) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds.RefreshToken
}

// Subscribe returns a channel that receives the current state immediately and
// then every change. The channel holds only the latest state; a slow reader
// skips intermediate states but always sees the newest one.
func (s *Store) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.state

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
		})
	}
}

// WaitResolved blocks until an authorization decision can be taken.
func (s *Store) WaitResolved(ctx context.Context) (State, error) {
	ch, cancel := s.Subscribe()
	defer cancel()
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return s.State(), ErrClosed
			}
			if st.Resolved() {
				return st, nil
			}
		case <-ctx.Done():
			return s.State(), ctx.Err()
		}
	}
}

// Start resolves the initial identity. An empty refresh token settles the
// store as signed out. Start only acts on the initial state: once a sign-in or
// sign-out has moved the store on, or the user has started one, its result is
// dropped.
func (s *Store) Start(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		s.settleInitial()
		return nil
	}
	res, err := s.backend.Refresh(ctx, refreshToken)
	if err != nil {
		s.settleInitial()
		return err
	}
	if res.Credentials == nil {
		s.settleInitial()
		return apperr.Auth(apperr.CodeSessionExpired)
	}
	if !s.adopt(initialEpoch, res, true) {
		s.discard(res)
		return apperr.ErrSuperseded
	}
	return nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) (Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Identity{}, apperr.Auth(apperr.CodeInvalidRequest)
	}

	epoch := s.beginAction()
	res, err := s.backend.Authenticate(ctx, email, password)
	if err != nil {
		return Identity{}, err
	}
	if res.Credentials == nil {
		return Identity{}, apperr.Auth(apperr.CodeEmailNotConfirmed)
	}
	if !s.adopt(epoch, res, false) {
		s.discard(res)
		return Identity{}, apperr.ErrSuperseded
	}
	return res.Identity, nil
}

// SignUp creates an account with the chosen role. When the backend requires
// email confirmation the state is left unchanged.
func (s *Store) SignUp(ctx context.Context, req SignUpRequest) (SignUpOutcome, error) {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.Email == "" || req.Password == "" || req.DisplayName == "" || !req.Role.Valid() {
		return SignUpOutcome{}, apperr.Auth(apperr.CodeInvalidRequest)
	}

	epoch := s.beginAction()
	res, err := s.backend.CreateAccount(ctx, req)
	if err != nil {
		return SignUpOutcome{}, err
	}
	outcome := SignUpOutcome{Identity: res.Identity, ConfirmationRequired: res.ConfirmationRequired || res.Credentials == nil}
	if outcome.ConfirmationRequired {
		return outcome, nil
	}
	if !s.adopt(epoch, res, false) {
		s.discard(res)
		return SignUpOutcome{}, apperr.ErrSuperseded
	}
	return outcome, nil
}

// SignOut clears the session. Calling it again is a no-op for subscribers.
func (s *Store) SignOut(ctx context.Context) {
	s.mu.Lock()
	s.acted = true
	s.epoch++
	creds := s.creds
	s.creds = Credentials{}
	s.publishLocked(State{RoleResolved: true})
	s.mu.Unlock()

	if creds.RefreshToken == "" {
		return
	}
	if err := s.backend.RevokeSession(ctx, creds.RefreshToken); err != nil {
		s.logger.Warn("revoke session failed", "error", err)
	}
}

func (s *Store) ResetPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return apperr.Auth(apperr.CodeInvalidRequest)
	}
	return s.backend.RequestPasswordReset(ctx, email)
}

func (s *Store) ConfirmEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.Auth(apperr.CodeInvalidToken)
	}
	return s.backend.ConfirmEmail(ctx, token)
}

// Reauthenticate swaps an expired access token for a fresh one without
// touching the published state. Concurrent callers share one refresh, since
// the API rotates the refresh token on use. A rejected refresh token ends the
// session.
func (s *Store) Reauthenticate(ctx context.Context) error {
	s.mu.Lock()
	refreshToken := s.creds.RefreshToken
	s.mu.Unlock()
	if refreshToken == "" {
		return apperr.Auth(apperr.CodeNotAuthenticated)
	}

	_, err, _ := s.reauth.Do(refreshToken, func() (interface{}, error) {
		return nil, s.refresh(ctx, refreshToken)
	})
	return err
}

func (s *Store) refresh(ctx context.Context, refreshToken string) error {
	s.mu.Lock()
	epoch := s.epoch
	current := s.creds.RefreshToken
	s.mu.Unlock()
	if current != refreshToken {
		// Rotated by a refresh that finished before this one started.
		if current == "" {
			return apperr.Auth(apperr.CodeNotAuthenticated)
		}
		return nil
	}

	res, err := s.backend.Refresh(ctx, refreshToken)
	if err != nil {
		if apperr.IsAuth(err) {
			s.settleSignedOut(epoch)
		}
		return err
	}
	if res.Credentials == nil {
		s.settleSignedOut(epoch)
		return apperr.Auth(apperr.CodeSessionExpired)
	}

	s.mu.Lock()
	if s.closed || s.epoch != epoch {
		s.mu.Unlock()
		s.discard(res)
		return apperr.ErrSuperseded
	}
	s.creds = *res.Credentials
	s.mu.Unlock()
	return nil
}

// Close stops background work and closes every subscription.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// beginAction records that the user started a sign-in or sign-up and returns
// the epoch its result must be adopted under.
func (s *Store) beginAction() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acted = true
	return s.epoch
}

// adopt installs res as the current session if nothing moved the store since
// epoch. A resumed session also yields to any action the user started.
// Credentials it replaces are revoked.
func (s *Store) adopt(epoch uint64, res AuthResult, resumed bool) bool {
	s.mu.Lock()
	if s.closed || s.epoch != epoch || (resumed && s.acted) {
		s.mu.Unlock()
		return false
	}
	s.epoch++
	current := s.epoch
	replaced := s.creds
	s.creds = *res.Credentials
	identity := res.Identity
	s.publishLocked(State{Identity: &identity})

	s.wg.Add(1)
	go s.resolveProfile(current, res.Credentials.AccessToken)
	s.mu.Unlock()

	if replaced.RefreshToken != "" && replaced.RefreshToken != res.Credentials.RefreshToken {
		s.revoke(replaced.RefreshToken, "replaced")
	}
	return true
}

// discard revokes credentials that arrived for a superseded session.
func (s *Store) discard(res AuthResult) {
	s.logger.Debug("discarding superseded authentication", "user_id", res.Identity.ID)
	if res.Credentials == nil || res.Credentials.RefreshToken == "" {
		return
	}
	s.revoke(res.Credentials.RefreshToken, "superseded")
}

// revoke ends exactly one refresh session. The user's other sessions are
// untouched.
func (s *Store) revoke(refreshToken, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), revokeTimeout)
	defer cancel()
	if err := s.backend.RevokeSession(ctx, refreshToken); err != nil {
		s.logger.Debug("revoke session failed", "reason", reason, "error", err)
	}
}

func (s *Store) resolveProfile(epoch uint64, accessToken string) {
	defer s.wg.Done()

	var (
		profile *Profile
		lastErr error
	)
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(s.backoff * time.Duration(attempt))
			select {
			case <-timer.C:
			case <-s.ctx.Done():
				timer.Stop()
				return
			}
		}
		if s.Epoch() != epoch {
			return
		}
		p, err := s.backend.FetchProfile(s.ctx, accessToken)
		if err == nil {
			profile, lastErr = p, nil
			break
		}
		lastErr = err
		if !apperr.IsNetwork(err) {
			break
		}
		s.logger.Warn("profile fetch failed", "attempt", attempt+1, "error", err)
	}

	if lastErr != nil && apperr.IsAuth(lastErr) {
		s.settleSignedOut(epoch)
		return
	}
	s.settleProfile(epoch, profile, lastErr)
}

func (s *Store) settleProfile(epoch uint64, profile *Profile, fetchErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.epoch != epoch {
		s.logger.Debug("discarding stale profile result", "epoch", epoch)
		return
	}
	next := State{Identity: s.state.Identity, Profile: profile, RoleResolved: true}
	if fetchErr != nil {
		next.ProfileErr = apperr.Code(fetchErr)
	}
	if profile != nil && !profile.Role.Valid() {
		s.logger.Warn("profile carries unknown role", "user_id", profile.UserID, "role", string(profile.Role))
	}
	s.publishLocked(next)
}

// settleSignedOut ends the session of epoch after the backend rejected its
// credentials. Like SignOut it advances the epoch, so work still running for
// that session is dropped.
func (s *Store) settleSignedOut(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.epoch != epoch {
		return
	}
	s.epoch++
	s.creds = Credentials{}
	s.publishLocked(State{RoleResolved: true})
}

// settleInitial resolves a store that is still in its initial state to signed
// out. It does not advance the epoch: a sign-in already in flight still wins.
func (s *Store) settleInitial() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.epoch != initialEpoch {
		return
	}
	s.publishLocked(State{RoleResolved: true})
}

func (s *Store) publishLocked(next State) {
	if s.closed || s.state.Equal(next) {
		return
	}
	s.state = next
	for _, ch := range s.subs {
		select {
		case ch <- next:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- next
		}
	}
}
