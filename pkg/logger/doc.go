// Package logger builds the service's structured slog logger. Production
// environments log JSON, everything else logs key=value text.
package logger
