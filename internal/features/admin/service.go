package admin

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/flardop/Advanced-Retro-sub001/internal/auth"
	"github.com/flardop/Advanced-Retro-sub001/internal/common"
	"github.com/flardop/Advanced-Retro-sub001/internal/config"
)

// Store records login attempts. *Repository implements it.
type Store interface {
	LogAttempt(ctx context.Context, a *LoginAttempt) error
	RecentFailures(ctx context.Context, remoteAddr string, since time.Time) (int, error)
}

// TokenIssuer signs session tokens. *auth.Tokens implements it.
type TokenIssuer interface {
	Issue(subject, email, role string, ttl time.Duration) (string, error)
}

// Service authenticates staff.
type Service struct {
	store  Store
	tokens TokenIssuer
	email  string
	hash   string
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates the admin service from the configured credentials.
func NewService(store Store, tokens TokenIssuer, cfg *config.Config) *Service {
	return &Service{
		store:  store,
		tokens: tokens,
		email:  strings.ToLower(strings.TrimSpace(cfg.AdminEmail)),
		hash:   cfg.AdminPasswordHash,
		ttl:    cfg.AdminSessionTTL,
		now:    time.Now,
	}
}

// Login verifies the admin credentials and returns a session token.
// Three failed attempts from one address within an hour lock that address out.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := common.ValidateStruct(in); err != nil {
		return nil, err
	}

	failures, err := s.store.RecentFailures(ctx, in.RemoteAddr, s.now().Add(-lockoutWindow))
	if err != nil {
		return nil, err
	}
	if failures >= maxFailedAttempts {
		log.WithField("remote_addr", in.RemoteAddr).Warn("Admin login blocked")
		return nil, common.ErrTooManyAttempts
	}

	emailOK := subtle.ConstantTimeCompare([]byte(in.Email), []byte(s.email)) == 1
	match := VerifyPassword(in.Password, s.hash) && emailOK

	if err := s.store.LogAttempt(ctx, &LoginAttempt{RemoteAddr: in.RemoteAddr, Email: in.Email, Success: match}); err != nil {
		log.WithError(err).Warn("Failed to record admin login attempt")
	}

	if !match {
		log.WithFields(log.Fields{"remote_addr": in.RemoteAddr, "email": in.Email}).Warn("Admin login failed")
		return nil, common.ErrWrongPassword
	}

	token, err := s.tokens.Issue(adminSubject, s.email, auth.RoleAdmin, s.ttl)
	if err != nil {
		return nil, err
	}

	log.WithField("remote_addr", in.RemoteAddr).Info("Admin session opened")
	return &Session{Token: token, Email: s.email, ExpiresAt: s.now().Add(s.ttl)}, nil
}
