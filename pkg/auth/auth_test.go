package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newGenerator(t *testing.T, audience ...string) *JWTGenerator {
	t.Helper()
	g, err := NewJWTGenerator(JWTGeneratorConfig{SecretKey: testSecret, Issuer: "flowboard", Audience: audience, ExpiryTime: time.Hour})
	require.NoError(t, err)
	return g
}

func TestJWTValidator(t *testing.T) {
	validator, err := NewJWTValidator(JWTConfig{SigningMethod: "HS256", SecretKey: testSecret, Issuer: "flowboard", Audience: []string{"flowboard-api"}})
	require.NoError(t, err)

	good, err := newGenerator(t, "flowboard-api").GenerateToken("user-1", "a@example.com", []string{"authenticated"})
	require.NoError(t, err)

	expiredGen := newGenerator(t, "flowboard-api")
	expiredGen.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
	expired, err := expiredGen.GenerateToken("user-1", "", nil)
	require.NoError(t, err)

	otherKey, err := NewJWTGenerator(JWTGeneratorConfig{SecretKey: "other", Issuer: "flowboard", Audience: []string{"flowboard-api"}})
	require.NoError(t, err)
	forged, err := otherKey.GenerateToken("user-1", "", nil)
	require.NoError(t, err)

	wrongAudience, err := newGenerator(t, "someone-else").GenerateToken("user-1", "", nil)
	require.NoError(t, err)

	noSubject, err := newGenerator(t, "flowboard-api").GenerateToken("", "", nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid", good, nil},
		{"valid with bearer prefix", "Bearer " + good, nil},
		{"missing", "  ", ErrMissingToken},
		{"expired", expired, ErrExpiredToken},
		{"bad signature", forged, ErrInvalidSignature},
		{"wrong audience", wrongAudience, ErrInvalidClaims},
		{"no subject", noSubject, ErrInvalidClaims},
		{"garbage", "not.a.jwt", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := validator.Verify(context.Background(), tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "user-1", user.UserID)
			assert.Equal(t, "a@example.com", user.Email)
			assert.True(t, user.HasRole("authenticated"))
		})
	}
}

func TestNewJWTValidatorRequiresKey(t *testing.T) {
	_, err := NewJWTValidator(JWTConfig{SigningMethod: "HS256"})
	assert.Error(t, err)
	_, err = NewJWTValidator(JWTConfig{SigningMethod: "RS256"})
	assert.Error(t, err)
	_, err = NewJWTValidator(JWTConfig{SigningMethod: "none", SecretKey: "x"})
	assert.Error(t, err)
}

func TestSupabaseVerifier(t *testing.T) {
	v := &SupabaseVerifier{getUser: func(token string) (*UserContext, error) {
		if token == "good" {
			return &UserContext{UserID: "5b0e6f3c-0000-4000-8000-000000000001"}, nil
		}
		return nil, errors.New("401")
	}}

	user, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "5b0e6f3c-0000-4000-8000-000000000001", user.UserID)

	_, err = v.Verify(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestStaticVerifier(t *testing.T) {
	_, err := NewStaticVerifier(" ")
	assert.Error(t, err)

	v, err := NewStaticVerifier("local-user")
	require.NoError(t, err)
	user, err := v.Verify(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "local-user", user.UserID)
	assert.False(t, RequiresToken(v))

	jwtV, err := NewJWTValidator(JWTConfig{SecretKey: testSecret})
	require.NoError(t, err)
	assert.True(t, RequiresToken(jwtV))
}

func TestUserContext(t *testing.T) {
	_, err := GetUserFromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoUser)

	ctx := SetUserInContext(context.Background(), &UserContext{UserID: "u"})
	user, err := GetUserFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u", user.UserID)
}

func TestSlidingWindowLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	l := NewSlidingWindowLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	for i, want := range []bool{true, true, false} {
		ok, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "request %d", i)
	}

	ok, _ := l.Allow(ctx, "other")
	assert.True(t, ok, "keys are independent")

	now = now.Add(61 * time.Second)
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok, "window slid")

	now = now.Add(2 * time.Minute)
	ok, _ = l.Allow(ctx, "fresh")
	assert.True(t, ok)
	assert.Len(t, l.windows, 1, "idle keys are forgotten")
}

func TestSlidingWindowLimiterRemaining(t *testing.T) {
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)
	now := start
	l := NewSlidingWindowLimiter(3, time.Minute)
	l.now = func() time.Time { return now }

	remaining, reset, err := l.Remaining(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
	assert.Equal(t, start.Add(time.Minute), reset)

	_, _ = l.Allow(ctx, "k")
	now = start.Add(10 * time.Second)
	_, _ = l.Allow(ctx, "k")

	remaining, reset, err = l.Remaining(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
	assert.Equal(t, start.Add(time.Minute), reset, "oldest request slides out first")

	_, _ = l.Allow(ctx, "k")
	_, _ = l.Allow(ctx, "k")
	remaining, _, _ = l.Remaining(ctx, "k")
	assert.Zero(t, remaining)

	now = start.Add(61 * time.Second)
	remaining, reset, _ = l.Remaining(ctx, "k")
	assert.Equal(t, 1, remaining)
	assert.Equal(t, start.Add(70*time.Second), reset)
}

func TestIPAndUserLimitersNamespaceKeys(t *testing.T) {
	shared := NewSlidingWindowLimiter(1, time.Minute)
	ip := NewIPRateLimiterWith(shared)
	user := NewUserRateLimiterWith(shared)

	ok, _ := ip.Allow(context.Background(), "same")
	assert.True(t, ok)
	ok, _ = user.Allow(context.Background(), "same")
	assert.True(t, ok)
	ok, _ = ip.Allow(context.Background(), "same")
	assert.False(t, ok)
}

func TestDistributedRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	l := NewDistributedRateLimiter(client, 2, time.Minute, "flowboard:")
	now := time.Unix(1_700_000_040, 0)
	l.now = func() time.Time { return now }
	mr.SetTime(now)

	for i, want := range []bool{true, true, false} {
		ok, err := l.Allow(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "request %d", i)
	}

	remaining, reset, err := l.Remaining(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.Zero(t, remaining)
	assert.Equal(t, time.Unix(1_700_000_040, 0).Truncate(time.Minute).Add(time.Minute), reset)

	remaining, _, err = l.Remaining(ctx, "ip:5.6.7.8")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	mr.Close()
	ok, err := l.Allow(ctx, "ip:1.2.3.4")
	assert.True(t, ok, "fails open")
	assert.Error(t, err)
}
