package auth

import (
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSessionCookieName() string
	GetBaseURL() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// DefaultSessionCookieName is used when no Config is provided
const DefaultSessionCookieName = "session_token"

// SimpleConfig is a plain-struct Config implementation for embedding in
// application configuration.
type SimpleConfig struct {
	SessionCookieName string
	BaseURL           string
}

func (c SimpleConfig) GetSessionCookieName() string {
	if c.SessionCookieName == "" {
		return DefaultSessionCookieName
	}
	return c.SessionCookieName
}

func (c SimpleConfig) GetBaseURL() string {
	return c.BaseURL
}
