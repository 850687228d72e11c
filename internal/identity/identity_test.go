package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/PaulBabatuyi/duochat/internal/apperr"
	"github.com/PaulBabatuyi/duochat/internal/auth"
	"github.com/PaulBabatuyi/duochat/internal/data/datatest"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *datatest.Store) {
	t.Helper()
	store := datatest.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, auth.NewJWTManager("test-secret", time.Hour), NewMemoryRevocations(), log)
	return svc, store
}

func TestSignUpValidation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	cases := map[string]SignUpInput{
		"blank email":        {Email: "  ", Password: "secret1", ConfirmPassword: "secret1"},
		"no at sign":         {Email: "alice", Password: "secret1", ConfirmPassword: "secret1"},
		"mismatch":           {Email: "a@example.com", Password: "secret1", ConfirmPassword: "secret2"},
		"short password":     {Email: "a@example.com", Password: "abc", ConfirmPassword: "abc"},
		"mismatch and short": {Email: "a@example.com", Password: "abc", ConfirmPassword: "abd"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.SignUp(ctx, in)
			require.Error(t, err)
			assert.Equal(t, apperr.Validation, apperr.KindOf(err))
		})
	}

	// validation happens before any write
	assert.Zero(t, store.Writes("CreateAccount"))
}

func TestSignUpAndSignIn(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	creds, err := svc.SignUp(ctx, SignUpInput{Email: "Alice@Example.com", Password: "secret1", ConfirmPassword: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, creds.Principal.ID)
	assert.Equal(t, "alice@example.com", creds.Principal.Email)
	assert.Equal(t, "Alice", creds.Principal.DisplayName, "display name defaults to the email local part")
	assert.NotEmpty(t, creds.Token)

	_, err = svc.SignUp(ctx, SignUpInput{Email: "alice@example.com", Password: "secret1", ConfirmPassword: "secret1"})
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	signedIn, err := svc.SignIn(ctx, "ALICE@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, creds.Principal, signedIn.Principal)
	assert.NotEqual(t, creds.TokenID, signedIn.TokenID)
}

func TestSignInFailuresLookAlike(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, SignUpInput{Email: "bob@example.com", Password: "secret1", ConfirmPassword: "secret1"})
	require.NoError(t, err)

	_, wrongPwd := svc.SignIn(ctx, "bob@example.com", "nope-nope")
	_, unknown := svc.SignIn(ctx, "nobody@example.com", "secret1")

	assert.Equal(t, apperr.Auth, apperr.KindOf(wrongPwd))
	assert.Equal(t, apperr.Auth, apperr.KindOf(unknown))
	assert.Equal(t, apperr.Message(wrongPwd), apperr.Message(unknown))

	_, blank := svc.SignIn(ctx, "", "")
	assert.Equal(t, apperr.Validation, apperr.KindOf(blank))
}

func TestSignInPropagatesTransportFailure(t *testing.T) {
	svc, store := newTestService(t)
	store.FailNext("GetAccountByEmail", apperr.E("datatest", apperr.Network, "", errors.New("connection reset")))

	_, err := svc.SignIn(context.Background(), "bob@example.com", "secret1")
	assert.Equal(t, apperr.Network, apperr.KindOf(err))
}

func TestAuthenticateAndSignOut(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	creds, err := svc.SignUp(ctx, SignUpInput{Email: "carol@example.com", Password: "secret1", ConfirmPassword: "secret1"})
	require.NoError(t, err)

	authed, err := svc.Authenticate(ctx, creds.Token)
	require.NoError(t, err)
	assert.Equal(t, creds.Principal, authed.Principal)

	sess := NewSession(authed)
	var seen []*Principal
	unsubscribe := sess.Subscribe(func(p *Principal) { seen = append(seen, p) })
	defer unsubscribe()

	require.NoError(t, svc.SignOut(ctx, sess))
	assert.False(t, sess.Active())
	require.Len(t, seen, 1)
	assert.Nil(t, seen[0])

	_, err = svc.Authenticate(ctx, creds.Token)
	assert.Equal(t, apperr.Auth, apperr.KindOf(err), "revoked token must not authenticate")

	// second sign-out is a no-op
	require.NoError(t, svc.SignOut(ctx, sess))
	assert.Len(t, seen, 1)

	_, err = svc.Authenticate(ctx, "garbage")
	assert.Equal(t, apperr.Auth, apperr.KindOf(err))
	_, err = svc.Authenticate(ctx, "")
	assert.Equal(t, apperr.Auth, apperr.KindOf(err))
}

func TestSessionSubscribe(t *testing.T) {
	assert.Nil(t, NewSession(nil).Principal())
	assert.False(t, NewSession(nil).Active())

	sess := NewSession(&Credentials{Principal: Principal{ID: "u1"}})
	assert.True(t, sess.Active())

	var first, second int
	unsubscribe := sess.Subscribe(func(p *Principal) {
		assert.Nil(t, p)
		first++
	})
	stop := sess.Subscribe(func(*Principal) { second++ })
	stop()
	stop()

	sess.End()
	sess.End() // already ended: no second notification
	unsubscribe()

	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second, "unsubscribed listeners are not called")
	assert.Nil(t, sess.Principal())
}

func TestCheckEndsRevokedSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	creds, err := svc.SignUp(ctx, SignUpInput{Email: "dave@example.com", Password: "secret1", ConfirmPassword: "secret1"})
	require.NoError(t, err)

	// two connections opened with the same token
	first, second := NewSession(creds), NewSession(creds)
	ended := 0
	second.Subscribe(func(p *Principal) {
		if p == nil {
			ended++
		}
	})
	require.NoError(t, svc.Check(ctx, second))

	require.NoError(t, svc.SignOut(ctx, first))
	err = svc.Check(ctx, second)
	assert.Equal(t, apperr.Auth, apperr.KindOf(err))
	assert.False(t, second.Active())
	assert.Equal(t, 1, ended)

	// an ended session stays ended
	assert.Equal(t, apperr.Auth, apperr.KindOf(svc.Check(ctx, second)))
}

func TestCheckEndsExpiredSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	creds, err := svc.SignUp(ctx, SignUpInput{Email: "erin@example.com", Password: "secret1", ConfirmPassword: "secret1"})
	require.NoError(t, err)
	sess := NewSession(creds)

	svc.now = func() time.Time { return creds.ExpiresAt.Add(time.Second) }
	err = svc.Check(ctx, sess)
	assert.Equal(t, apperr.Auth, apperr.KindOf(err))
	assert.False(t, sess.Active())
}

func TestSessionContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	sess := NewSession(&Credentials{Principal: Principal{ID: "u1"}})
	ctx := WithSession(context.Background(), sess)

	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", p.ID)

	sess.End()
	_, ok = PrincipalFromContext(ctx)
	assert.False(t, ok, "an ended session carries no principal")
}

func TestMemoryRevocationsExpire(t *testing.T) {
	r := NewMemoryRevocations()
	now := time.Now()
	r.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "t1", now.Add(time.Minute)))
	require.NoError(t, r.Revoke(ctx, "t0", now.Add(-time.Minute)))

	revoked, _ := r.IsRevoked(ctx, "t1")
	assert.True(t, revoked)
	revoked, _ = r.IsRevoked(ctx, "t0")
	assert.False(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, _ = r.IsRevoked(ctx, "t1")
	assert.False(t, revoked)
}

func TestRedisRevocations(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	r := NewRedisRevocations(client)
	ctx := context.Background()
	id := "test-" + time.Now().Format("150405.000000")

	revoked, err := r.IsRevoked(ctx, id)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, id, time.Now().Add(time.Minute)))
	revoked, err = r.IsRevoked(ctx, id)
	require.NoError(t, err)
	assert.True(t, revoked)
}
