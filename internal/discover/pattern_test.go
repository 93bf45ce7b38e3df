package discover

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinkPatternMatch(t *testing.T) {
	p := MustLinkPattern(`https://feed\.example/p/([A-Za-z0-9_-]+)`)

	id, ok := p.Match("https://feed.example/p/DKx93jq2")
	require.True(t, ok)
	require.Equal(t, "DKx93jq2", id)

	_, ok = p.Match("https://feed.example/u/someone")
	require.False(t, ok)
}

func TestLinkPatternRejectsShortIDs(t *testing.T) {
	p := MustLinkPattern(`https://feed\.example/p/([A-Za-z0-9_-]+)`)
	_, ok := p.Match("https://feed.example/p/ab12")
	require.False(t, ok)
}

func TestLinkPatternRejectsReservedKeywords(t *testing.T) {
	p := MustLinkPattern(`https://feed\.example/([A-Za-z0-9_-]+)`)
	for _, kw := range []string{"login", "explore", "settings", "Accounts"} {
		_, ok := p.Match("https://feed.example/" + kw)
		require.False(t, ok, "keyword %q should be rejected", kw)
	}
}

func TestNewLinkPatternCaptureGroupCount(t *testing.T) {
	_, err := NewLinkPattern(`https://feed\.example/p/\w+`)
	require.Error(t, err)

	_, err = NewLinkPattern(`https://(feed)\.example/p/(\w+)`)
	require.Error(t, err)

	_, err = NewLinkPattern(`[`)
	require.Error(t, err)
}
