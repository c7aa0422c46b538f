package diagfmt

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"stanwatch/internal/diag"
)

const tabWidth = 4

type palette struct {
	path, severity, code, caret, tip, dim *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		path:     color.New(color.Bold),
		severity: color.New(color.FgRed, color.Bold),
		code:     color.New(color.FgMagenta),
		caret:    color.New(color.FgRed, color.Bold),
		tip:      color.New(color.FgCyan),
		dim:      color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.path, p.severity, p.code, p.caret, p.tip, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Pretty prints each diagnostic as
//
//	<path>:<line>:<col>: error [<code>] <message>
//
// followed, when lines knows the text, by the source line with the range
// underlined ^~~~, and by PHPStan's tip.
func Pretty(w io.Writer, sets []diag.FileDiagnostics, lines diag.LineProvider, opts PrettyOpts) error {
	if lines == nil {
		lines = diag.Unavailable
	}
	p := newPalette(opts.Color)
	for _, set := range sets {
		path := formatPath(set.File, opts.PathMode, opts.BaseDir)
		for _, d := range set.Diagnostics {
			if _, err := fmt.Fprintf(w, "%s: %s", p.path.Sprintf("%s:%d:%d", path, d.Range.Line+1, d.Range.StartCol+1), p.severity.Sprint("error")); err != nil {
				return err
			}
			if d.Code != "" {
				if _, err := fmt.Fprintf(w, " %s", p.code.Sprintf("[%s]", d.Code)); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, " %s\n", strings.TrimPrefix(d.Message, diag.Prefix)); err != nil {
				return err
			}
			if opts.ShowSource {
				if text, ok := lines.Line(d.File, int(d.Range.Line)); ok {
					if err := writeSource(w, p, text, d.Range); err != nil {
						return err
					}
				}
			}
			if opts.ShowTips && d.Tip != "" {
				if _, err := fmt.Fprintf(w, "  %s %s\n", p.tip.Sprint("tip:"), d.Tip); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func writeSource(w io.Writer, p palette, text string, rng diag.Range) error {
	start := byteOffset(text, int(rng.StartCol))
	end := byteOffset(text, int(rng.EndCol))
	if end < start {
		end = start
	}
	shown := expandTabs(text)
	pad := runewidth.StringWidth(expandTabs(text[:start]))
	width := runewidth.StringWidth(expandTabs(text[:end])) - pad
	if width < 1 {
		width = 1
	}
	caret := "^" + strings.Repeat("~", width-1)
	_, err := fmt.Fprintf(w, "  %s %s\n  %s %s%s\n", p.dim.Sprint("|"), shown, p.dim.Sprint("|"), strings.Repeat(" ", pad), p.caret.Sprint(caret))
	return err
}

// byteOffset maps a UTF-16 column onto a byte offset in text, clamped.
func byteOffset(text string, col int) int {
	units := 0
	for i, r := range text {
		if units >= col {
			return i
		}
		if n := len(utf16.Encode([]rune{r})); n > 0 {
			units += n
		} else {
			units++
		}
	}
	return len(text)
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}

// Short prints one diagnostic per line: <path>:<line>:<col>: <message>.
func Short(w io.Writer, sets []diag.FileDiagnostics, opts PrettyOpts) error {
	for _, set := range sets {
		path := formatPath(set.File, opts.PathMode, opts.BaseDir)
		for _, d := range set.Diagnostics {
			if _, err := fmt.Fprintf(w, "%s:%d:%d: %s\n", path, d.Range.Line+1, d.Range.StartCol+1, strings.TrimPrefix(d.Message, diag.Prefix)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Summary prints the final status line, coloured by outcome.
func Summary(w io.Writer, status string, count int, opts PrettyOpts) error {
	c := color.New(color.FgGreen, color.Bold)
	if count > 0 || !strings.HasSuffix(status, " passed") {
		c = color.New(color.FgRed, color.Bold)
	}
	if strings.HasSuffix(status, " unknown") {
		c = color.New(color.FgYellow, color.Bold)
	}
	if opts.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	noun := "diagnostics"
	if count == 1 {
		noun = "diagnostic"
	}
	_, err := fmt.Fprintf(w, "%s (%d %s)\n", c.Sprint(status), count, noun)
	return err
}
