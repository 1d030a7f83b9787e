package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// progressPrinter redraws a single progress line on w.
func progressPrinter(w io.Writer, label string) func(done, total int) {
	return func(done, total int) {
		fmt.Fprintf(w, "\r%s %s", label, mutedStyle.Render(fmt.Sprintf("%d/%d", done, total)))
		if done == total {
			fmt.Fprintln(w)
		}
	}
}

type summary interface {
	Success() bool
	Summary() string
}

func printSummary(w io.Writer, s summary) {
	if s.Success() {
		fmt.Fprintln(w, successStyle.Render("✓ ")+s.Summary())
		return
	}
	fmt.Fprintln(w, errorStyle.Render("✗ ")+s.Summary())
}
