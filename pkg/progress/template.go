package progress

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"
)

// Default templates.
const (
	DefaultPercentageTemplate = "{{percent .Progress}}"
	DefaultTimeTemplate       = "{{.Days}} {{.Seconds}}.{{.Microseconds}}"
)

// PercentageData is the value a percentage template is executed against.
// Fraction and Progress carry the same number.
type PercentageData struct {
	Fraction float64
	Progress float64
	Context  string
}

// TimeData is the value a time template is executed against. Seconds is the
// remainder within the day and Microseconds the remainder within the second.
type TimeData struct {
	Days         int
	Seconds      int
	Microseconds int
}

var templateFuncs = template.FuncMap{
	"percent": func(v float64) string {
		return formatPercent(v, 0)
	},
	"percentf": func(digits int, v float64) string {
		return formatPercent(v, digits)
	},
	"pad": func(width int, v any) string {
		return fmt.Sprintf("%*v", width, v)
	},
	"clock": func(days, seconds int) string {
		h := days*24 + seconds/3600
		return fmt.Sprintf("%02d:%02d:%02d", h, seconds%3600/60, seconds%60)
	},
}

func formatPercent(v float64, digits int) string {
	return strconv.FormatFloat(v*100, 'f', digits, 64) + "%"
}

// parseTemplate parses src and dry-runs it against zero so references to
// unknown fields fail at construction instead of on the first redraw.
func parseTemplate(name, src string, zero any) (*template.Template, error) {
	t, err := template.New(name).Funcs(templateFuncs).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplate, err)
	}
	if err := t.Execute(io.Discard, zero); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplate, err)
	}
	return t, nil
}

func render(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("%w: %w", ErrTemplate, err)
	}
	return sb.String(), nil
}
