package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_InvalidConfig(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
	}{
		{"zero chunk size", 0, 0},
		{"negative chunk size", -5, 0},
		{"negative overlap", 10, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			windows, err := Split("some text", tt.chunkSize, tt.overlap)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Nil(t, windows)
		})
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	_, err := Split("", 10, 2)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestSplit_InvalidConfigCheckedBeforeEmptyInput(t *testing.T) {
	_, err := Split("", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSplit_ShortTextSingleWindow(t *testing.T) {
	for _, text := range []string{"a", "hello", strings.Repeat("x", 100)} {
		windows, err := Split(text, 100, 20)
		require.NoError(t, err)
		require.Len(t, windows, 1)
		assert.Equal(t, text, windows[0].Text)
		assert.Equal(t, 0, windows[0].Index)
		assert.Equal(t, 0, windows[0].Start)
	}
}

func TestSplit_MeetingTranscriptScenario(t *testing.T) {
	text := strings.Repeat("abcdefghij", 1200) // 12,000 characters

	windows, err := Split(text, 5000, 1000)
	require.NoError(t, err)
	require.Len(t, windows, 3)

	assert.Equal(t, []int{0, 4000, 8000}, []int{windows[0].Start, windows[1].Start, windows[2].Start})
	assert.Equal(t, 5000, windows[0].Len())
	assert.Equal(t, 5000, windows[1].Len())
	assert.Equal(t, 4000, windows[2].Len())
	assert.Equal(t, 12000, windows[2].End)
}

func TestSplit_OverlapClamped(t *testing.T) {
	windows, err := Split("abcdef", 3, 10)
	require.NoError(t, err)

	// overlap clamps to 2, so step is 1
	require.Len(t, windows, 6)
	for i, w := range windows {
		assert.Equal(t, i, w.Index)
		assert.Equal(t, i, w.Start)
	}
	assert.Equal(t, "abc", windows[0].Text)
	assert.Equal(t, "f", windows[5].Text)
}

func TestSplit_CountsCharactersNotBytes(t *testing.T) {
	text := "héllo wörld ünïcode"

	windows, err := Split(text, 5, 0)
	require.NoError(t, err)

	var rebuilt strings.Builder
	for _, w := range windows {
		rebuilt.WriteString(w.Text)
	}
	assert.Equal(t, text, rebuilt.String())
	assert.Equal(t, "héllo", windows[0].Text)
}

func TestSplit_CoverageAndProgress(t *testing.T) {
	text := strings.Repeat("meeting notes ", 73)
	total := len([]rune(text))

	configs := [][2]int{{1, 0}, {7, 0}, {7, 3}, {50, 49}, {50, 200}, {100, 10}, {total, 5}, {total + 10, 0}}
	for _, cfg := range configs {
		chunkSize, overlap := cfg[0], cfg[1]
		_, step, err := Params(chunkSize, overlap)
		require.NoError(t, err)

		windows, err := Split(text, chunkSize, overlap)
		require.NoError(t, err)
		require.NotEmpty(t, windows)

		covered := 0
		for i, w := range windows {
			assert.Equal(t, i, w.Index)
			assert.LessOrEqual(t, w.Start, covered, "gap before window %d (chunk=%d overlap=%d)", i, chunkSize, overlap)
			if i > 0 {
				assert.Equal(t, step, w.Start-windows[i-1].Start)
			}
			assert.LessOrEqual(t, w.Len(), chunkSize)
			if w.End > covered {
				covered = w.End
			}
		}
		assert.Equal(t, total, covered)
		assert.Less(t, windows[len(windows)-1].Start, total)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("determinism ", 40)

	first, err := Split(text, 33, 7)
	require.NoError(t, err)
	second, err := Split(text, 33, 7)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestParams(t *testing.T) {
	overlap, step, err := Params(5000, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, overlap)
	assert.Equal(t, 4000, step)

	overlap, step, err = Params(10, 10)
	require.NoError(t, err)
	assert.Equal(t, 9, overlap)
	assert.Equal(t, 1, step)
}
