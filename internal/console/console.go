// Package console is the operator-facing terminal: prompts on an output
// stream, answers from an input stream, lipgloss styling for headings and
// notices. Logs never go through it.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/upb/prompt-review/services"
)

// RuleWidth is the width of separator lines
const RuleWidth = 80

// maxLineBytes bounds a single answer line
const maxLineBytes = 1 << 20

// Styles groups the lipgloss styles used for console output
type Styles struct {
	Title   lipgloss.Style
	Heading lipgloss.Style
	Label   lipgloss.Style
	Success lipgloss.Style
	Warn    lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}

// DefaultStyles returns the styles bound to renderer r
func DefaultStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		Heading: r.NewStyle().Bold(true),
		Label:   r.NewStyle().Foreground(lipgloss.Color("#8A8A8A")),
		Success: r.NewStyle().Foreground(lipgloss.Color("#04B575")),
		Warn:    r.NewStyle().Foreground(lipgloss.Color("#FFB86C")),
		Error:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5555")),
		Muted:   r.NewStyle().Faint(true),
	}
}

// Console reads operator answers line by line and writes styled output.
// Styling degrades to plain text when out is not a terminal.
type Console struct {
	out       io.Writer
	styles    Styles
	lines     chan string
	done      chan struct{}
	closeOnce sync.Once
}

// New starts the reader goroutine on in. The goroutine ends when in reaches EOF
// or fails, or after Close once its current read returns. A blocked read is
// abandoned, not interrupted, when ctx is cancelled.
func New(in io.Reader, out io.Writer) *Console {
	c := &Console{
		out:    out,
		styles: DefaultStyles(lipgloss.NewRenderer(out)),
		lines:  make(chan string),
		done:   make(chan struct{}),
	}
	go c.readLines(in)
	return c
}

func (c *Console) readLines(in io.Reader) {
	defer close(c.lines)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for scanner.Scan() {
		select {
		case c.lines <- strings.TrimRight(scanner.Text(), "\r"):
		case <-c.done:
			return
		}
	}
}

// Close stops forwarding input. Unread lines are dropped and later reads
// return services.ErrInterrupted.
func (c *Console) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// ReadLine waits for the next input line. Closed input and a cancelled context
// both return services.ErrInterrupted.
func (c *Console) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", services.ErrInterrupted
	case <-c.done:
		return "", services.ErrInterrupted
	case line, ok := <-c.lines:
		if !ok {
			return "", services.ErrInterrupted
		}
		return line, nil
	}
}

// Prompt writes prompt without a newline and reads the answer
func (c *Console) Prompt(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	return c.ReadLine(ctx)
}

// Blank writes an empty line
func (c *Console) Blank() {
	fmt.Fprintln(c.out)
}

// Rule writes a separator line made of ch
func (c *Console) Rule(ch string) {
	fmt.Fprintln(c.out, c.styles.Muted.Render(strings.Repeat(ch, RuleWidth)))
}

// Title writes a banner between two heavy rules
func (c *Console) Title(text string) {
	c.Rule("=")
	fmt.Fprintln(c.out, c.styles.Title.Render(text))
	c.Rule("=")
}

// Heading writes a bold line
func (c *Console) Heading(text string) {
	fmt.Fprintln(c.out, c.styles.Heading.Render(text))
}

// Field writes "label: value"
func (c *Console) Field(label, value string) {
	fmt.Fprintf(c.out, "%s %s\n", c.styles.Label.Render(label+":"), value)
}

// Success writes an indented confirmation line
func (c *Console) Success(text string) {
	fmt.Fprintln(c.out, "   "+c.styles.Success.Render(text))
}

// Warn writes an indented warning line
func (c *Console) Warn(text string) {
	fmt.Fprintln(c.out, "   "+c.styles.Warn.Render(text))
}

// Info writes an indented informational line
func (c *Console) Info(text string) {
	fmt.Fprintln(c.out, "   "+c.styles.Muted.Render(text))
}

// Error writes an error line
func (c *Console) Error(text string) {
	fmt.Fprintln(c.out, c.styles.Error.Render(text))
}
