package progress

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
)

// backspace moves the cursor one cell to the left without erasing.
const backspace = '\b'

// LineWriter redraws a single line on out. Each redraw backs the cursor over
// the previously written text and writes the new text, padding with blanks
// when the new text is narrower so no stale characters remain visible.
//
// LineWriter is safe for concurrent use, but two LineWriters sharing one
// stream will corrupt each other's line.
type LineWriter struct {
	out io.Writer

	mu       sync.Mutex
	lastText string
	buf      bytes.Buffer
}

// NewLineWriter returns a LineWriter that redraws on out.
func NewLineWriter(out io.Writer) *LineWriter {
	return &LineWriter{out: out}
}

// Write redraws the line with text. It reports whether a redraw happened;
// writing the same text twice in a row is a no-op.
//
// Erase and padding counts are terminal cells as measured by go-runewidth,
// not runes: a wide rune such as 日 takes two backspaces. For ASCII text the
// two are the same.
func (w *LineWriter) Write(text string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if text == w.lastText {
		return false, nil
	}

	lastWidth := runewidth.StringWidth(w.lastText)
	padding := max(0, lastWidth-runewidth.StringWidth(text))

	w.buf.Reset()
	for range lastWidth {
		w.buf.WriteByte(backspace)
	}
	w.buf.WriteString(text)
	if padding > 0 {
		w.buf.WriteString(strings.Repeat(" ", padding))
		// park the cursor right after text so the next erase count is exact
		for range padding {
			w.buf.WriteByte(backspace)
		}
	}

	if _, err := w.out.Write(w.buf.Bytes()); err != nil {
		return false, fmt.Errorf("write progress line: %w", err)
	}
	w.lastText = text
	return true, nil
}

// LastText returns the most recently rendered text, without padding.
func (w *LineWriter) LastText() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastText
}

// Newline ends the managed line. The next Write starts a fresh line instead
// of erasing the old one.
func (w *LineWriter) Newline() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := io.WriteString(w.out, "\n"); err != nil {
		return fmt.Errorf("write progress newline: %w", err)
	}
	w.lastText = ""
	return nil
}
