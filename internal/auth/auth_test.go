package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/diceraja/internal/auth"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newVerifier(t *testing.T, cfg auth.Config) *auth.Verifier {
	t.Helper()
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return fixedNow }
	}
	v, err := auth.NewVerifier(cfg)
	require.NoError(t, err)
	return v
}

func TestIdentify_RoundTrip(t *testing.T) {
	v := newVerifier(t, auth.Config{Secret: []byte("s3cret"), Issuer: "diceraja", Audience: "players"})
	tok, err := v.Issue(auth.Identity{UserID: "u-1", DisplayName: "Alice"}, time.Hour)
	require.NoError(t, err)

	id, err := v.Identify(tok)
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{UserID: "u-1", DisplayName: "Alice"}, id)
	assert.False(t, id.Anonymous())
}

func TestIdentify_Anonymous(t *testing.T) {
	v := newVerifier(t, auth.Config{Secret: []byte("s3cret")})
	id, err := v.Identify("  ")
	require.NoError(t, err)
	assert.True(t, id.Anonymous())

	open := newVerifier(t, auth.Config{})
	assert.False(t, open.Enabled())
	id, err = open.Identify("whatever")
	require.NoError(t, err)
	assert.True(t, id.Anonymous())
}

func TestIdentify_Required(t *testing.T) {
	_, err := auth.NewVerifier(auth.Config{Required: true})
	require.Error(t, err)

	v := newVerifier(t, auth.Config{Secret: []byte("s3cret"), Required: true})
	_, err = v.Identify("")
	assert.ErrorIs(t, err, auth.ErrTokenRequired)
}

func TestIdentify_Expired(t *testing.T) {
	issuer := newVerifier(t, auth.Config{Secret: []byte("s3cret")})
	tok, err := issuer.Issue(auth.Identity{UserID: "u-1"}, time.Minute)
	require.NoError(t, err)

	later := newVerifier(t, auth.Config{Secret: []byte("s3cret"), Now: func() time.Time { return fixedNow.Add(time.Hour) }})
	_, err = later.Identify(tok)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestIdentify_RejectsWrongSecretAndAudience(t *testing.T) {
	a := newVerifier(t, auth.Config{Secret: []byte("one"), Audience: "players"})
	tok, err := a.Issue(auth.Identity{UserID: "u-1"}, time.Hour)
	require.NoError(t, err)

	b := newVerifier(t, auth.Config{Secret: []byte("two"), Audience: "players"})
	_, err = b.Identify(tok)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)

	c := newVerifier(t, auth.Config{Secret: []byte("one"), Audience: "admins"})
	_, err = c.Identify(tok)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)

	_, err = a.Identify("not-a-jwt")
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestIdentify_RequiresSubject(t *testing.T) {
	v := newVerifier(t, auth.Config{Secret: []byte("s3cret")})
	tok, err := v.Issue(auth.Identity{}, time.Hour)
	require.NoError(t, err)
	_, err = v.Identify(tok)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", auth.BearerToken("Bearer abc"))
	assert.Equal(t, "abc", auth.BearerToken("bearer  abc "))
	assert.Equal(t, "", auth.BearerToken("Basic abc"))
	assert.Equal(t, "", auth.BearerToken(""))
}
