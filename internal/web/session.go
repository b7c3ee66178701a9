package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/listingwizard/internal/attachment"
	"github.com/vbonduro/listingwizard/internal/attachment/local"
	"github.com/vbonduro/listingwizard/internal/persist"
	"github.com/vbonduro/listingwizard/internal/schema"
	"github.com/vbonduro/listingwizard/internal/submit"
	"github.com/vbonduro/listingwizard/internal/wizard"
)

const sessionCookie = "listing_session"

// Session is one browser's wizard with its own stored draft and photo spool.
type Session struct {
	ID      string
	Wizard  *wizard.Wizard
	Spool   attachment.Spool
	adapter *persist.Adapter

	// lastSeen is guarded by Sessions.mu.
	lastSeen time.Time
}

type SessionConfig struct {
	Storage    persist.Storage
	Submitter  submit.Submitter
	SpoolRoot  string
	KeyPrefix  string
	PhotoLimit int
	// IdleTimeout is how long an unused session stays in memory. Zero keeps
	// sessions until Close.
	IdleTimeout time.Duration
}

// Sessions creates wizards on first use and keeps them until they sit idle
// for longer than the configured timeout. A returning session id restores
// its stored draft.
type Sessions struct {
	schema *schema.Schema
	cfg    SessionConfig
	logger *slog.Logger

	mu   sync.Mutex
	byID map[string]*Session
}

func NewSessions(sc *schema.Schema, cfg SessionConfig, logger *slog.Logger) *Sessions {
	return &Sessions{schema: sc, cfg: cfg, logger: logger, byID: make(map[string]*Session)}
}

// DraftKey is the storage key of the draft of session id.
func (s *Sessions) DraftKey(id string) string {
	return persist.SessionKey(s.cfg.KeyPrefix, id)
}

func (s *Sessions) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byID[id]; ok {
		sess.lastSeen = time.Now()
		return sess, nil
	}

	spool, err := local.NewLocalSpool(filepath.Join(s.cfg.SpoolRoot, id))
	if err != nil {
		return nil, fmt.Errorf("failed to create session spool: %w", err)
	}
	logger := s.logger.With("session", id)
	adapter := persist.NewAdapter(s.cfg.Storage, s.DraftKey(id), s.schema, logger)
	wiz := wizard.New(s.schema, adapter, s.cfg.Submitter, wizard.Config{PhotoLimit: s.cfg.PhotoLimit, Spool: spool}, logger)
	wiz.Restore(ctx)

	sess := &Session{ID: id, Wizard: wiz, Spool: spool, adapter: adapter, lastSeen: time.Now()}
	s.byID[id] = sess
	logger.Info("session started")
	return sess, nil
}

// Evict drops the sessions last used more than the idle timeout before now.
// Their drafts are written out and stay stored, their spooled photos are
// deleted. A session with a submission in flight is kept.
func (s *Sessions) Evict(ctx context.Context, now time.Time) int {
	if s.cfg.IdleTimeout <= 0 {
		return 0
	}
	s.mu.Lock()
	var idle []*Session
	for id, sess := range s.byID {
		if now.Sub(sess.lastSeen) < s.cfg.IdleTimeout || sess.Wizard.Mode() == wizard.Submitting {
			continue
		}
		delete(s.byID, id)
		idle = append(idle, sess)
	}
	s.mu.Unlock()

	for _, sess := range idle {
		sess.adapter.Close()
		if err := sess.Spool.Purge(ctx); err != nil {
			s.logger.Error("failed to purge session spool", "session", sess.ID, "error", err)
		}
		s.logger.Debug("session evicted", "session", sess.ID)
	}
	return len(idle)
}

// RunEviction evicts idle sessions periodically until ctx is done.
func (s *Sessions) RunEviction(ctx context.Context) {
	if s.cfg.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(max(s.cfg.IdleTimeout/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Evict(ctx, now); n > 0 {
				s.logger.Info("evicted idle sessions", "count", n)
			}
		}
	}
}

// Close writes out pending drafts of every session.
func (s *Sessions) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.byID {
		sess.adapter.Close()
		delete(s.byID, id)
	}
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *Session)

// session resolves the caller's session from its cookie, issuing a new id
// when the cookie is missing or malformed.
func (s *Server) session(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(sessionCookie); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		sess, err := s.sessions.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to open session")
			s.logger.Error("open session failed", "session", id, "error", err)
			return
		}
		h(w, r, sess)
	}
}
