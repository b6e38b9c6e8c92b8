package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_RoundTrip(t *testing.T) {
	tok, err := GenerateToken(42, "alice", 0)
	require.NoError(t, err)

	claims, err := ParseToken(tok)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	exp, err := TokenExpiry(tok)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	_, err = ParseToken(tok + "x")
	assert.Error(t, err)
}

func TestToken_NonPositiveDurationUsesConfiguredTTL(t *testing.T) {
	tok, err := GenerateToken(1, "bob", -time.Minute)
	require.NoError(t, err)
	exp, err := TokenExpiry(tok)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)
}

func TestBlacklist_Redis(t *testing.T) {
	mr := withRedis(t)
	BlacklistToken("tok", time.Now().Add(time.Minute))
	assert.True(t, IsTokenBlacklisted("tok"))
	assert.False(t, IsTokenBlacklisted("other"))

	mr.FastForward(2 * time.Minute)
	assert.False(t, IsTokenBlacklisted("tok"))
}

func TestBlacklist_Memory(t *testing.T) {
	SetRedis(nil)
	BlacklistToken("mem", time.Now().Add(time.Minute))
	assert.True(t, IsTokenBlacklisted("mem"))
	BlacklistToken("old", time.Now().Add(-time.Second))
	assert.False(t, IsTokenBlacklisted("old"))
}

func TestOAuthState_SingleUse(t *testing.T) {
	withRedis(t)
	SaveState("s1", time.Minute)
	assert.True(t, ConsumeState("s1"))
	assert.False(t, ConsumeState("s1"))

	SetRedis(nil)
	SaveState("s2", time.Minute)
	assert.True(t, ConsumeState("s2"))
	assert.False(t, ConsumeState("s2"))
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.True(t, CheckPassword(h, "hunter22"))
	assert.False(t, CheckPassword(h, "hunter23"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Tom & Jerry", SanitizeText("  <b>Tom</b> & Jerry<script>x()</script> "))
	assert.NotContains(t, Sanitize(`<p onclick="x()">hi</p>`), "onclick")
	assert.Empty(t, Sanitize("<script>x</script>"))

	// Titles are plain text: escaped markup comes back as literal characters.
	assert.Equal(t, "<script>", SanitizeText("&lt;script&gt;"))
	assert.Empty(t, SanitizeText("<script>alert(1)</script>"))
}

func TestCacheJSON(t *testing.T) {
	withRedis(t)
	CacheSetJSON("myblog:test:k", map[string]int{"a": 1}, time.Minute)
	var got map[string]int
	require.True(t, CacheGetJSON("myblog:test:k", &got))
	assert.Equal(t, 1, got["a"])

	InvalidateByPrefix("myblog:test:")
	assert.False(t, CacheGetJSON("myblog:test:k", &got))
}
