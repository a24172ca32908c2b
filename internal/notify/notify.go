// Package notify carries user-visible mutation notifications.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Notifier reports mutation outcomes to the user.
type Notifier interface {
	Success(message string)
	Error(message string)
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// Terminal prints styled notifications to w.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminal returns a Notifier writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Success(message string) {
	t.write(successStyle.Render("✔") + " " + message)
}

func (t *Terminal) Error(message string) {
	slog.Debug("error notification", "message", message)
	t.write(errorStyle.Render("✖") + " " + message)
}

func (t *Terminal) write(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, line)
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu        sync.Mutex
	Successes []string
	Errors    []string
}

func (r *Recorder) Success(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Successes = append(r.Successes, message)
}

func (r *Recorder) Error(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, message)
}

// Counts returns the number of success and error notifications.
func (r *Recorder) Counts() (successes, errors int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Successes), len(r.Errors)
}
