package admin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flardop/Advanced-Retro-sub001/internal/auth"
	"github.com/flardop/Advanced-Retro-sub001/internal/common"
	"github.com/flardop/Advanced-Retro-sub001/internal/config"
)

type attemptStore struct {
	mu       sync.Mutex
	attempts []*LoginAttempt
	now      func() time.Time
	logErr   error
}

func (s *attemptStore) LogAttempt(_ context.Context, a *LoginAttempt) error {
	if s.logErr != nil {
		return s.logErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.AttemptTime = s.now()
	s.attempts = append(s.attempts, a)
	return nil
}

func (s *attemptStore) RecentFailures(_ context.Context, remoteAddr string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.attempts {
		if a.RemoteAddr == remoteAddr && !a.Success && !a.AttemptTime.Before(since) {
			n++
		}
	}
	return n, nil
}

var (
	hashOnce sync.Once
	hashed   string
)

func testHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		var err error
		hashed, err = HashPassword("correct horse")
		require.NoError(t, err)
	})
	return hashed
}

func newAdmin(t *testing.T) (*Service, *attemptStore, *auth.Tokens, *time.Time) {
	t.Helper()
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &attemptStore{now: func() time.Time { return clock }}
	tokens := auth.NewTokens("admin-test-secret-0123")
	svc := NewService(store, tokens, &config.Config{
		AdminEmail:        "Admin@AdvancedRetro.es",
		AdminPasswordHash: testHash(t),
		AdminSessionTTL:   2 * time.Hour,
	})
	svc.now = func() time.Time { return clock }
	return svc, store, tokens, &clock
}

func TestHashAndVerifyPassword(t *testing.T) {
	h := testHash(t)
	assert.Regexp(t, `^\$argon2id\$v=19\$m=65536,t=3,p=2\$`, h)
	assert.True(t, VerifyPassword("correct horse", h))
	assert.False(t, VerifyPassword("wrong horse", h))
	assert.False(t, VerifyPassword("correct horse", "not-a-hash"))
	assert.False(t, VerifyPassword("correct horse", "$argon2id$v=19$m=x$salt$hash"))
}

func TestLogin_Success(t *testing.T) {
	svc, store, tokens, _ := newAdmin(t)

	session, err := svc.Login(context.Background(), LoginInput{
		Email:      " admin@advancedretro.es ",
		Password:   "correct horse",
		RemoteAddr: "10.0.0.1",
	})
	require.NoError(t, err)
	assert.Equal(t, "admin@advancedretro.es", session.Email)

	claims, err := tokens.Parse(session.Token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, "admin", claims.Subject)

	require.Len(t, store.attempts, 1)
	assert.True(t, store.attempts[0].Success)
}

func TestLogin_LocksAfterThreeFailures(t *testing.T) {
	svc, store, _, clock := newAdmin(t)
	ctx := context.Background()
	bad := LoginInput{Email: "admin@advancedretro.es", Password: "nope", RemoteAddr: "10.0.0.9"}

	for i := 0; i < 3; i++ {
		_, err := svc.Login(ctx, bad)
		assert.ErrorIs(t, err, common.ErrWrongPassword)
	}

	good := bad
	good.Password = "correct horse"
	_, err := svc.Login(ctx, good)
	assert.ErrorIs(t, err, common.ErrTooManyAttempts)
	assert.Len(t, store.attempts, 3, "blocked attempts are not recorded")

	// Another address is unaffected.
	other := good
	other.RemoteAddr = "10.0.0.10"
	_, err = svc.Login(ctx, other)
	assert.NoError(t, err)

	// The lock expires after an hour.
	*clock = clock.Add(lockoutWindow + time.Minute)
	_, err = svc.Login(ctx, good)
	assert.NoError(t, err)
}

func TestLogin_WrongEmail(t *testing.T) {
	svc, _, _, _ := newAdmin(t)
	_, err := svc.Login(context.Background(), LoginInput{Email: "intruder@example.com", Password: "correct horse", RemoteAddr: "1.1.1.1"})
	assert.ErrorIs(t, err, common.ErrWrongPassword)
}

func TestLogin_Validation(t *testing.T) {
	svc, _, _, _ := newAdmin(t)
	_, err := svc.Login(context.Background(), LoginInput{Email: "not-an-email", Password: "x", RemoteAddr: "1.1.1.1"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestLogin_AttemptLogFailureDoesNotBlockLogin(t *testing.T) {
	svc, store, _, _ := newAdmin(t)
	store.logErr = errors.New("insert failed")

	_, err := svc.Login(context.Background(), LoginInput{Email: "admin@advancedretro.es", Password: "correct horse", RemoteAddr: "1.1.1.1"})
	assert.NoError(t, err)
}
