package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/dwizi/pmt-assistant/internal/assistant"
)

type theme struct {
	brand    lipgloss.Style
	intent   lipgloss.Style
	fallback lipgloss.Style
	answer   lipgloss.Style
	prompt   lipgloss.Style
	subtle   lipgloss.Style
	success  lipgloss.Style
	err      lipgloss.Style
}

func newTheme() theme {
	accent := lipgloss.Color("111")
	muted := lipgloss.Color("246")
	warn := lipgloss.Color("214")
	success := lipgloss.Color("78")
	danger := lipgloss.Color("203")

	return theme{
		brand:    lipgloss.NewStyle().Bold(true).Foreground(accent),
		intent:   lipgloss.NewStyle().Bold(true).Foreground(accent),
		fallback: lipgloss.NewStyle().Bold(true).Foreground(warn),
		answer: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("238")).
			PaddingLeft(1),
		prompt:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("147")),
		subtle:  lipgloss.NewStyle().Foreground(muted),
		success: lipgloss.NewStyle().Bold(true).Foreground(success),
		err:     lipgloss.NewStyle().Bold(true).Foreground(danger),
	}
}

// printer writes assistant output, styled unless plain output was asked for
// or NO_COLOR is set.
type printer struct {
	out    io.Writer
	styled bool
	theme  theme
}

func newPrinter(out io.Writer, plain bool) *printer {
	return &printer{
		out:    out,
		styled: !plain && os.Getenv("NO_COLOR") == "",
		theme:  newTheme(),
	}
}

func (p *printer) paint(style lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return style.Render(text)
}

func (p *printer) response(response assistant.Response) {
	label := p.paint(p.theme.intent, "["+string(response.Intent)+"]")
	if response.UsedFallback {
		label += " " + p.paint(p.theme.fallback, "(model)")
	}
	fmt.Fprintln(p.out, label)
	fmt.Fprintln(p.out, p.paint(p.theme.answer, strings.TrimRight(response.Text, "\n")))
}

func (p *printer) info(format string, args ...any) {
	fmt.Fprintln(p.out, p.paint(p.theme.subtle, fmt.Sprintf(format, args...)))
}

func (p *printer) ok(format string, args ...any) {
	fmt.Fprintln(p.out, p.paint(p.theme.success, fmt.Sprintf(format, args...)))
}

func (p *printer) failure(format string, args ...any) {
	fmt.Fprintln(p.out, p.paint(p.theme.err, fmt.Sprintf(format, args...)))
}

func (p *printer) promptText() string {
	return p.paint(p.theme.prompt, "you> ")
}
