// Package progress renders a continuously changing status line on a text
// stream without scrolling the terminal.
//
// LineWriter owns the redraw primitive: it backs the cursor over the text it
// wrote last, writes the new text, and pads with blanks when the new text is
// narrower. Redundant writes of identical text produce no output.
//
// Two renderers are built on it:
//
//   - Percentage is caller driven. Each Update adds to a counter clamped to
//     [0, total] and redraws the fraction through a template.
//   - Timer is self driven. Start launches a goroutine that redraws the
//     elapsed time every period until Stop, context cancellation, or a fault.
//     Faults are kept in Err, passed to the WithErrorHandler callback and
//     logged.
//
// Templates use text/template. Percentage templates see .Progress, .Fraction
// and .Context; time templates see .Days, .Seconds and .Microseconds.
//
// Renderers optionally report lifecycle events to an Emitter. Hub is the
// standard Emitter: it batches events on a background goroutine and fans
// them out to Sinks without ever blocking a redraw.
//
// Only one renderer may be active on a given stream at a time; concurrent
// renderers interleave their writes and corrupt the line.
package progress
