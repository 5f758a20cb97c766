// Package notify delivers short user-facing messages about the outcome of
// an operation, separate from the diagnostic log.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hongminglow/loandesk/internal/logging"
)

// Level classifies a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notice is one message for the user.
type Notice struct {
	Level   Level
	Message string
}

// Notifier surfaces notices to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Error is shorthand for an error-level notice.
func Error(ctx context.Context, n Notifier, msg string) {
	if n != nil {
		n.Notify(ctx, Notice{Level: LevelError, Message: msg})
	}
}

// Success is shorthand for a success-level notice.
func Success(ctx context.Context, n Notifier, msg string) {
	if n != nil {
		n.Notify(ctx, Notice{Level: LevelSuccess, Message: msg})
	}
}

// LogNotifier records notices in the structured log. The server uses it
// since its callers read errors from the response.
type LogNotifier struct {
	log logging.Logger
}

func NewLogNotifier(log logging.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("component", "notify")}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notice) {
	if n.Level == LevelError {
		l.log.Warn(ctx, n.Message, "notice", string(n.Level))
		return
	}
	l.log.Info(ctx, n.Message, "notice", string(n.Level))
}

// WriterNotifier prints notices as lines, for terminal use.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

func (wn *WriterNotifier) Notify(_ context.Context, n Notice) {
	wn.mu.Lock()
	defer wn.mu.Unlock()
	fmt.Fprintf(wn.w, "[%s] %s\n", n.Level, n.Message)
}

// Recorder keeps every notice in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of what has been recorded.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Errors returns the messages of error-level notices.
func (r *Recorder) Errors() []string {
	var out []string
	for _, n := range r.Notices() {
		if n.Level == LevelError {
			out = append(out, n.Message)
		}
	}
	return out
}
