package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	coachStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")).Italic(true)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	youStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	retryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	feedbackStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	exampleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#40A9FF")).Bold(true)
)

// Console prints events for a terminal session.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole writes styled events to w.
func NewConsole(w io.Writer) *Console {
	return &Console{out: w}
}

func (c *Console) Notify(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, Render(e))
}

// Render formats one event as a single styled line.
func Render(e Event) string {
	switch e.Label {
	case Welcome, Closing:
		return coachStyle.Render("COACH: " + e.Message)
	case Prompt:
		line := coachStyle.Render("COACH: " + e.Message)
		if e.Duration > 0 {
			line += statusStyle.Render(fmt.Sprintf("  (%ds)", e.Duration))
		}
		return line
	case Hint:
		return hintStyle.Render("  hint: " + e.Message)
	case Status:
		return statusStyle.Render("  [" + e.Message + "]")
	case Transcript:
		return youStyle.Render("YOU: " + e.Message)
	case Retry:
		return retryStyle.Render("COACH: " + e.Message)
	case Feedback, Acknowledge:
		return feedbackStyle.Render("COACH: " + e.Message)
	case Example:
		return exampleStyle.Render("  \"" + e.Message + "\"")
	default:
		return string(e.Label) + ": " + e.Message
	}
}
