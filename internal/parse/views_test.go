package parse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractViewsToken(t *testing.T) {
	bounds := DefaultBounds()

	t.Run("divider anchored with unicode spaces", func(t *testing.T) {
		raw := "Thread ====== 313K views"
		token, ok := extractViewsToken(Normalize(raw), bounds)
		require.True(t, ok)
		require.Equal(t, "313K", token)
	})

	t.Run("no matching keyword", func(t *testing.T) {
		_, ok := extractViewsToken("nothing to see here", bounds)
		require.False(t, ok)
	})

	t.Run("own line beats anywhere", func(t *testing.T) {
		raw := "talking about 5 views in passing\n42K views\n"
		token, ok := extractViewsToken(raw, bounds)
		require.True(t, ok)
		require.Equal(t, "42K", token)
	})

	t.Run("out of range candidate falls through", func(t *testing.T) {
		// The divider-anchored value is above the sane range; the
		// generic pattern later in the document should win instead.
		raw := "====== 200M views\nreposted 1.2K views elsewhere"
		token, ok := extractViewsToken(raw, bounds)
		require.True(t, ok)
		require.Equal(t, "1.2K", token)
	})
}

func TestViews(t *testing.T) {
	bounds := DefaultBounds()

	t.Run("converts suffix", func(t *testing.T) {
		got, ok := Views("Thread ====== 313K views", bounds)
		require.True(t, ok)
		require.Equal(t, int64(313_000), got)
	})

	t.Run("absent", func(t *testing.T) {
		_, ok := Views("no metrics here", bounds)
		require.False(t, ok)
	})

	t.Run("singular view", func(t *testing.T) {
		got, ok := Views("1 view", bounds)
		require.True(t, ok)
		require.Equal(t, int64(1), got)
	})
}
