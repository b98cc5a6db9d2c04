// Package session keeps the signed-in token and identity as one pair, in
// memory and in device storage.
package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"campus/portal/internal/logger"
	"campus/portal/internal/model"
	"campus/portal/internal/storage"
)

const (
	TokenKey = "token"
	UserKey  = "user"
)

var ErrEmptyToken = errors.New("empty token")

// Listener observes session changes; active is false after logout.
type Listener func(sess model.Session, active bool)

type Store struct {
	storage storage.Storage
	log     logger.Logger

	mu        sync.RWMutex
	current   model.Session
	active    bool
	listeners []Listener
}

func New(store storage.Storage, log logger.Logger) *Store {
	return &Store{storage: store, log: log}
}

// Login replaces any prior session unconditionally. The in-memory pair is
// always updated; a durable write failure is logged and the session lives
// on for this process only.
func (s *Store) Login(ctx context.Context, token string, identity model.Identity) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}
	sess := model.Session{Token: token, Identity: identity}
	s.mu.Lock()
	s.current = sess
	s.active = true
	s.mu.Unlock()

	s.persist(ctx, sess)
	s.log.Debug("signed in", identity)
	s.publish(sess, true)
	return nil
}

func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	s.current = model.Session{}
	s.active = false
	s.mu.Unlock()

	if err := s.storage.Delete(ctx, TokenKey, UserKey); err != nil {
		s.log.Warn("session clear failed", err)
	}
	s.publish(model.Session{}, false)
}

// Restore loads the persisted pair. Anything short of a token plus an
// identity record with an id leaves the store empty.
func (s *Store) Restore(ctx context.Context) (model.Session, bool) {
	sess, ok := s.read(ctx)
	s.mu.Lock()
	s.current = sess
	s.active = ok
	s.mu.Unlock()
	if ok {
		s.log.Debug("session restored", sess.Identity)
		s.publish(sess, true)
	}
	return sess, ok
}

func (s *Store) read(ctx context.Context) (model.Session, bool) {
	token, ok, err := s.storage.Get(ctx, TokenKey)
	if err != nil {
		s.log.Warn("session restore failed", err)
		return model.Session{}, false
	}
	if !ok || token == "" {
		return model.Session{}, false
	}
	raw, ok, err := s.storage.Get(ctx, UserKey)
	if err != nil {
		s.log.Warn("session restore failed", err)
		return model.Session{}, false
	}
	if !ok {
		return model.Session{}, false
	}
	var identity model.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		s.log.Warn("stored identity unreadable", errors.Wrap(err, "decoding user"))
		return model.Session{}, false
	}
	if identity.ID == "" {
		return model.Session{}, false
	}
	return model.Session{Token: token, Identity: identity}, true
}

// UpdateIdentity swaps the identity under the current token. Without an
// active session it does nothing.
func (s *Store) UpdateIdentity(ctx context.Context, identity model.Identity) bool {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return false
	}
	s.current.Identity = identity
	sess := s.current
	s.mu.Unlock()

	s.persist(ctx, sess)
	s.publish(sess, true)
	return true
}

func (s *Store) Current() (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.active
}

// Token is the bearer credential for outgoing calls, "" when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) persist(ctx context.Context, sess model.Session) {
	data, err := json.Marshal(sess.Identity)
	if err != nil {
		s.log.Error("encoding identity failed", errors.WithStack(err))
		return
	}
	// user, then token, with nothing removed first: a failed write leaves the
	// previous pair restorable.
	if err := s.storage.Set(ctx, UserKey, string(data)); err != nil {
		s.log.Warn("session persist failed", err)
		return
	}
	if err := s.storage.Set(ctx, TokenKey, sess.Token); err != nil {
		s.log.Warn("session persist failed", err)
	}
}

func (s *Store) publish(sess model.Session, active bool) {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(sess, active)
	}
}
