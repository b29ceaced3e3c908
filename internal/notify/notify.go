// Package notify carries non-blocking user notifications out of the core
// services. It replaces the toast layer of the web client: warnings for
// stock clamps, errors for failed remote calls, confirmations for completed
// actions.
package notify

import "log"

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notification struct {
	Level       Level
	Title       string
	Description string
}

// Notifier receives notifications; it must never block or fail the caller.
type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	log.Printf("[%s] %s: %s", n.Level, n.Title, n.Description)
}
