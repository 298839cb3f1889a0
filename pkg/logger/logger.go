package logger

import (
	"os"
	"strings"

	waLog "go.mau.fi/whatsmeow/util/log"
)

type Logger struct {
	App  waLog.Logger
	HTTP waLog.Logger
	Hub  waLog.Logger
}

var levels = map[string]bool{"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true}

// New builds the process loggers. Unknown levels fall back to INFO.
func New(module, level string) *Logger {
	level = strings.ToUpper(strings.TrimSpace(level))
	if !levels[level] {
		level = "INFO"
	}
	if module == "" {
		module = "App"
	}
	app := waLog.Stdout(module, level, os.Getenv("NO_COLOR") == "")
	return &Logger{
		App:  app,
		HTTP: app.Sub("HTTP"),
		Hub:  app.Sub("Hub"),
	}
}

func InitForTests() *Logger {
	return &Logger{App: waLog.Stdout("Test", "DEBUG", false), HTTP: waLog.Noop, Hub: waLog.Noop}
}

func DisableColor() {
	os.Setenv("NO_COLOR", "1")
}
