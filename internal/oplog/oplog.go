// Package oplog is the operations log: timestamped entries mirrored to
// stdout and to monthly log files, with errors (and their cause chains)
// going to a separate daily error file. The rest of the code surfaces
// failures here instead of deciding how to present them.
package oplog

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AdminNotifier is implemented by the delivery collaborator so severe
// errors can reach the operator channel.
type AdminNotifier interface {
	NotifyAdmin(message string)
}

// Logger writes the operations log. Safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	dir      string
	notifier AdminNotifier
}

// New creates a logger writing under dir.
func New(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &Logger{dir: dir}, nil
}

// SetAdminNotifier wires the operator channel. Optional; without it errors
// are only written to disk and stdout.
func (l *Logger) SetAdminNotifier(n AdminNotifier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notifier = n
}

// Printf records a routine entry in the monthly log file.
func (l *Logger) Printf(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	log.Print(message)

	now := time.Now()
	name := fmt.Sprintf("log_%s%d.txt", strings.ToUpper(now.Month().String()), now.Year())
	l.appendLine(name, now, message)
}

// Error records err with optional context identifiers (user, item name) in
// the daily error file, including the unwrap chain, and pings the admin.
func (l *Logger) Error(err error, context ...string) {
	now := time.Now()

	var sb strings.Builder
	if len(context) > 0 {
		sb.WriteString(strings.Join(context, " "))
		sb.WriteString(": ")
	}
	sb.WriteString(err.Error())
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		sb.WriteString("\ncaused by: ")
		sb.WriteString(cause.Error())
	}
	message := sb.String()
	log.Printf("error: %s", message)

	name := fmt.Sprintf("errors_%d%d%d.txt", now.Day(), int(now.Month()), now.Year())
	l.appendLine(name, now, message)

	l.mu.Lock()
	notifier := l.notifier
	l.mu.Unlock()
	if notifier != nil {
		notifier.NotifyAdmin("some errors occurred :(")
	}
}

func (l *Logger) appendLine(name string, now time.Time, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := now.Format("2006-01-02 15:04:05") + " " + message + "\n"
	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("critical - couldn't open log file: %v", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		log.Printf("critical - couldn't write log: %v", err)
	}
}
