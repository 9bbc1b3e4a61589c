package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in    string
		want  uint
		valid bool
	}{
		{"42", 42, true},
		{"0", 0, false},
		{"-1", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, valid := ParseID(tt.in)
		assert.Equal(t, tt.valid, valid, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTTLCache(t *testing.T) {
	t.Parallel()
	c, err := NewTTLCache[int](8)
	require.NoError(t, err)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("leaderboard:2025-W01:10", 1, time.Minute)
	c.Set("leaderboard:2025-W01:50", 2, time.Minute)
	c.Set("leaderboard:2025-W02:10", 3, time.Minute)

	v, ok := c.Get("leaderboard:2025-W01:10")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	c.DeletePrefix("leaderboard:2025-W01:")
	_, ok = c.Get("leaderboard:2025-W01:10")
	assert.False(t, ok)
	_, ok = c.Get("leaderboard:2025-W01:50")
	assert.False(t, ok)
	_, ok = c.Get("leaderboard:2025-W02:10")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("leaderboard:2025-W02:10")
	assert.False(t, ok, "expired")

	c.Set("k", 4, time.Minute)
	c.Delete("k")
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestRenderMarkdown(t *testing.T) {
	t.Parallel()
	out := RenderMarkdown("**bold** [shop](https://shop.example.com/x)\n\n<script>alert(1)</script>\n\n![pic](https://cdn.example.com/a.jpg)")

	assert.Contains(t, out, "<strong>bold</strong>")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, `loading="lazy"`)
	assert.Contains(t, out, "sponsored")
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Tee", SanitizeText("  <b>Tee</b> "))
	assert.Equal(t, "H&M", SanitizeText("H&M"))
	assert.Equal(t, "", SanitizeText("<script>x</script>"))
}

func TestEnhanceHTMLContent(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", EnhanceHTMLContent(""))

	out := EnhanceHTMLContent(`<p><a href="/items/1">local</a><a href="https://shop.example.com">shop</a></p>`)
	assert.Contains(t, out, `<a href="/items/1">local</a>`)
	assert.Contains(t, out, `rel="nofollow noopener noreferrer sponsored"`)
}
