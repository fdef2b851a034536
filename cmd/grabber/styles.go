package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))             // green
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))             // red
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))            // yellow
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))            // cyan
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")) // purple
)

// styleFor picks the style for an engine log line.
func styleFor(message string) lipgloss.Style {
	switch {
	case strings.HasPrefix(message, "Error"), strings.HasPrefix(message, "Unable"):
		return errorStyle
	case strings.HasPrefix(message, "Download completed"):
		return successStyle
	case strings.HasPrefix(message, "Download paused"), strings.HasPrefix(message, "Download resumed"):
		return warningStyle
	case strings.HasPrefix(message, "Progress:"):
		return progressStyle
	default:
		return lipgloss.NewStyle()
	}
}

// printer writes engine log lines to a terminal, redrawing progress lines in place.
type printer struct {
	mu     sync.Mutex
	out    io.Writer
	inline bool
}

func (p *printer) Print(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rendered := styleFor(message).Render(message)

	if strings.HasPrefix(message, "Progress:") {
		fmt.Fprintf(p.out, "\r%s", rendered)
		p.inline = true

		return
	}

	if p.inline {
		fmt.Fprintln(p.out)
		p.inline = false
	}

	fmt.Fprintln(p.out, rendered)
}

// Header prints a bold section title.
func (p *printer) Header(text string) {
	p.Print(headerStyle.Render(text))
}

func (p *printer) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inline {
		fmt.Fprintln(p.out)
		p.inline = false
	}
}
