package progress

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/require"
)

// screen replays redraw output onto a single terminal line: '\b' moves the
// cursor one cell left, every other rune overwrites the cells under the
// cursor. The second cell of a wide rune holds 0.
type screen struct {
	cells  []rune
	cursor int
}

func (s *screen) apply(out string) {
	for _, r := range out {
		if r == '\b' {
			if s.cursor > 0 {
				s.cursor--
			}
			continue
		}
		s.put(r)
		for range runewidth.RuneWidth(r) - 1 {
			s.put(0)
		}
	}
}

func (s *screen) put(r rune) {
	if s.cursor == len(s.cells) {
		s.cells = append(s.cells, r)
	} else {
		s.cells[s.cursor] = r
	}
	s.cursor++
}

func (s *screen) visible() string {
	var sb strings.Builder
	for _, r := range s.cells {
		if r != 0 {
			sb.WriteRune(r)
		}
	}
	return strings.TrimRight(sb.String(), " ")
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

// countingWriter records each Write call separately.
type countingWriter struct{ writes []string }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes = append(w.writes, string(p))
	return len(p), nil
}

func TestLineWriterFirstWrite(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewLineWriter(&buf)
	drawn, err := w.Write("abc")
	require.NoError(t, err)
	require.True(t, drawn)
	require.Equal(t, "abc", buf.String())
	require.Equal(t, "abc", w.LastText())
}

func TestLineWriterSkipsRedundantWrites(t *testing.T) {
	t.Parallel()

	out := &countingWriter{}
	w := NewLineWriter(out)
	_, err := w.Write("42%")
	require.NoError(t, err)
	drawn, err := w.Write("42%")
	require.NoError(t, err)
	require.False(t, drawn)
	require.Len(t, out.writes, 1)
}

func TestLineWriterEmptyTextIsNoop(t *testing.T) {
	t.Parallel()

	out := &countingWriter{}
	drawn, err := NewLineWriter(out).Write("")
	require.NoError(t, err)
	require.False(t, drawn)
	require.Empty(t, out.writes)
}

func TestLineWriterShrinkPadsAndParksCursor(t *testing.T) {
	t.Parallel()

	out := &countingWriter{}
	w := NewLineWriter(out)
	_, err := w.Write("50%")
	require.NoError(t, err)
	_, err = w.Write("5%")
	require.NoError(t, err)

	require.Len(t, out.writes, 2)
	second := out.writes[1]
	require.Equal(t, "\b\b\b5% \b", second)
	require.GreaterOrEqual(t, strings.Count(second, "\b"), 3)
	require.Equal(t, "5%", w.LastText())

	_, err = w.Write("100%")
	require.NoError(t, err)
	require.Equal(t, "\b\b100%", out.writes[2])
}

func TestLineWriterWideRunes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewLineWriter(&buf)
	_, err := w.Write("日本")
	require.NoError(t, err)
	buf.Reset()
	_, err = w.Write("a")
	require.NoError(t, err)
	require.Equal(t, "\b\b\b\ba   \b\b\b", buf.String())
}

func TestLineWriterOutputErrorKeepsState(t *testing.T) {
	t.Parallel()

	boom := errors.New("broken pipe")
	w := NewLineWriter(failingWriter{err: boom})
	drawn, err := w.Write("10%")
	require.ErrorIs(t, err, boom)
	require.False(t, drawn)
	require.Empty(t, w.LastText())
}

func TestLineWriterNewline(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewLineWriter(&buf)
	_, err := w.Write("done")
	require.NoError(t, err)
	require.NoError(t, w.Newline())
	_, err = w.Write("next")
	require.NoError(t, err)
	require.Equal(t, "done\nnext", buf.String())
}

func TestLineWriterNeverLeavesStaleCharacters(t *testing.T) {
	t.Parallel()

	alphabet := []rune("abcXYZ 09%日")
	rng := rand.New(rand.NewSource(7))
	var buf bytes.Buffer
	w := NewLineWriter(&buf)
	var term screen

	for i := 0; i < 500; i++ {
		n := rng.Intn(12)
		text := make([]rune, n)
		for j := range text {
			text[j] = alphabet[rng.Intn(len(alphabet))]
		}
		// trailing blanks are indistinguishable from padding on screen
		s := strings.TrimRight(string(text), " ")

		buf.Reset()
		_, err := w.Write(s)
		require.NoError(t, err)
		term.apply(buf.String())

		require.Equal(t, s, term.visible(), "iteration %d", i)
		require.Equal(t, runewidth.StringWidth(s), term.cursor, "cursor must rest after the text")
	}
}
