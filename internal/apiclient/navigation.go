package apiclient

import (
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// LoginPath is the login view that 401 responses redirect to.
const LoginPath = "/login"

// Navigator exposes the caller's current location and moves it elsewhere.
type Navigator interface {
	// Location returns the current path and query, e.g. "/config?env=prod".
	Location() string
	Navigate(target string)
}

// NopNavigator stays at a fixed location and ignores navigation.
type NopNavigator struct {
	At string
}

// Location returns the fixed location.
func (n NopNavigator) Location() string { return n.At }

// Navigate does nothing.
func (NopNavigator) Navigate(string) {}

// LoginURL builds the redirect target carrying next as continuation.
func LoginURL(next string) string {
	if next == "" {
		next = "/"
	}
	return LoginPath + "?next=" + url.QueryEscape(next)
}

// isLoginView reports whether location already points at the login view.
func isLoginView(location string) bool {
	path := location
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSuffix(path, "/")
	return path == LoginPath
}

// Level grades a notification.
type Level string

const (
	LevelError Level = "error"
	LevelInfo  Level = "info"
)

// Notification is a transient, user-facing message.
type Notification struct {
	Level   Level
	Message string
	Err     error
}

// Notifier surfaces notifications to the user.
type Notifier interface {
	Notify(Notification)
}

// LogNotifier writes notifications to a zerolog logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify logs n at a level matching its grade.
func (l LogNotifier) Notify(n Notification) {
	ev := l.Logger.Info()
	if n.Level == LevelError {
		ev = l.Logger.Error()
	}
	if n.Err != nil {
		ev = ev.Err(n.Err)
	}
	ev.Msg(n.Message)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}
