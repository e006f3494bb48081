// Package output formats CLI output, colored on terminals and plain
// everywhere else.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Writer renders command output. Write errors are dropped: there is
// nowhere better to report a broken stdout.
type Writer struct {
	out      io.Writer
	useColor bool
	styles   Styles
}

// New colors output only when out is a terminal and NO_COLOR is unset.
func New(out io.Writer) *Writer {
	return NewWithColor(out, IsTTY(out) && !DetectNoColor())
}

func NewWithColor(out io.Writer, color bool) *Writer {
	styles := NoColorStyles()
	if color {
		styles = DefaultStyles()
	}
	return &Writer{out: out, useColor: color, styles: styles}
}

// Colored reports whether the writer emits ANSI styling.
func (w *Writer) Colored() bool {
	return w.useColor
}

type notice int

const (
	noticeSuccess notice = iota
	noticeWarning
	noticeFailure
)

var noticeIcons = [...]string{
	noticeSuccess: "✅",
	noticeWarning: "⚠️ ",
	noticeFailure: "❌",
}

func (w *Writer) notice(kind notice, msg string) {
	style := w.styles.Success
	switch kind {
	case noticeWarning:
		style = w.styles.Warning
	case noticeFailure:
		style = w.styles.Error
	}
	w.Status(noticeIcons[kind], style.Render(msg))
}

// Status prints msg after icon. An empty icon keeps msg aligned with
// the text of iconed lines.
func (w *Writer) Status(icon, msg string) {
	if icon == "" {
		icon = "  "
	}
	w.println(icon + " " + msg)
}

func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

func (w *Writer) Success(msg string) { w.notice(noticeSuccess, msg) }

func (w *Writer) Successf(format string, args ...any) {
	w.notice(noticeSuccess, fmt.Sprintf(format, args...))
}

func (w *Writer) Warning(msg string) { w.notice(noticeWarning, msg) }

func (w *Writer) Errorf(format string, args ...any) {
	w.notice(noticeFailure, fmt.Sprintf(format, args...))
}

// Header prints a section title.
func (w *Writer) Header(title string) {
	w.println(w.styles.Header.Render(title))
}

// KeyValue prints "label: value" with values lined up across calls.
func (w *Writer) KeyValue(label string, value any) {
	padded := fmt.Sprintf("%-14s", label+":")
	w.println(fmt.Sprintf("  %s %v", w.styles.Label.Render(padded), value))
}

// Table prints rows under headers with columns padded to the widest cell.
// Cells past the last header are ignored.
func (w *Writer) Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	measure := func(cells []string) {
		for i := 0; i < len(cells) && i < len(widths); i++ {
			widths[i] = max(widths[i], lipgloss.Width(cells[i]))
		}
	}
	measure(headers)
	for _, row := range rows {
		measure(row)
	}

	render := func(cells []string) string {
		var b strings.Builder
		for i, width := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", width-lipgloss.Width(cell)))
		}
		return strings.TrimRight(b.String(), " ")
	}

	w.println(w.styles.Header.Render(render(headers)))
	for _, row := range rows {
		w.println(render(row))
	}
}

// Dim prints secondary text.
func (w *Writer) Dim(msg string) {
	w.println(w.styles.Dim.Render(msg))
}

func (w *Writer) Newline() {
	w.println("")
}

func (w *Writer) println(s string) {
	_, _ = fmt.Fprintln(w.out, s)
}
