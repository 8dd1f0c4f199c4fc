/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Logger = logrus.Logger

const timestampFormat = "2006-01-02 15:04:05.000"

var (
	defaultLevel      = ParseLogLevel(EnvDefaultString("LOG_LEVEL", "info"))
	consoleLogFormat  = EnvDefaultString("CONSOLE_LOG_FORMAT", "text")
	loggerRegistryMu  sync.RWMutex
	loggerRegistry    = map[string]*logrus.Logger{}
	loggerOutputMu    sync.RWMutex
	loggerOutput      io.Writer = os.Stdout
	loggerNameColumns           = 10
)

// ConfigureConsoleLogFormat switches newly created loggers between "text"
// and "json" output.
func ConfigureConsoleLogFormat(format string) {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		consoleLogFormat = "json"
	} else {
		consoleLogFormat = "text"
	}
}

// SetOutput redirects every registered logger, and those created later, to w.
func SetOutput(w io.Writer) {
	loggerOutputMu.Lock()
	loggerOutput = w
	loggerOutputMu.Unlock()

	loggerRegistryMu.RLock()
	defer loggerRegistryMu.RUnlock()
	for _, l := range loggerRegistry {
		l.SetOutput(w)
	}
}

func ParseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "info", "":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// NewLogger returns the logger registered under name, creating it on first use.
func NewLogger(name string) *logrus.Logger {
	loggerRegistryMu.Lock()
	defer loggerRegistryMu.Unlock()
	if l, ok := loggerRegistry[name]; ok {
		return l
	}

	loggerOutputMu.RLock()
	out := loggerOutput
	loggerOutputMu.RUnlock()

	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(defaultLevel)
	l.SetReportCaller(true)
	if consoleLogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
			},
		})
	} else {
		l.SetFormatter(&TextFormatter{LoggerName: name})
	}
	loggerRegistry[name] = l
	return l
}

// SetLoggerLevel changes the level of a registered logger. It reports
// whether a logger with that name exists.
func SetLoggerLevel(name string, lvlStr string) bool {
	loggerRegistryMu.RLock()
	l, ok := loggerRegistry[name]
	loggerRegistryMu.RUnlock()
	if !ok {
		return false
	}
	l.SetLevel(ParseLogLevel(lvlStr))
	return true
}

// ConfigureLogLevel applies the level to all registered loggers and to
// loggers created afterwards.
func ConfigureLogLevel(levelStr string) {
	lvl := ParseLogLevel(levelStr)
	defaultLevel = lvl
	loggerRegistryMu.RLock()
	defer loggerRegistryMu.RUnlock()
	for _, l := range loggerRegistry {
		l.SetLevel(lvl)
	}
}

// TextFormatter renders log4j-like lines:
//
//	2025-01-02 15:04:05.000    INFO 4242   [DATABASE] manager.go:91 : message key=value
type TextFormatter struct {
	LoggerName string
	NoColor    bool
}

func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder
	b.WriteString(entry.Time.Format(timestampFormat))
	b.WriteByte(' ')
	b.WriteString(f.colorLevel(fmt.Sprintf("%7s", strings.ToUpper(entry.Level.String())), entry.Level))
	b.WriteByte(' ')
	b.WriteString(fmt.Sprintf("%-6d", os.Getpid()))
	b.WriteByte(' ')
	b.WriteString(f.wrap(fmt.Sprintf("[%*s]", loggerNameColumns, limitRunes(f.LoggerName, loggerNameColumns)), ansiCyan))
	if entry.Caller != nil {
		b.WriteByte(' ')
		b.WriteString(f.wrap(filepath.Base(entry.Caller.File)+":"+strconv.Itoa(entry.Caller.Line), ansiFaint))
	}
	b.WriteString(" : ")
	b.WriteString(entry.Message)
	for k, v := range entry.Data {
		b.WriteString(fmt.Sprintf(" %s=%v", k, v))
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

const (
	ansiReset   = "\x1b[0m"
	ansiFaint   = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiYellow  = "\x1b[33m"
	ansiGreen   = "\x1b[32m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

func (f *TextFormatter) wrap(s, code string) string {
	if f.NoColor {
		return s
	}
	return code + s + ansiReset
}

func (f *TextFormatter) colorLevel(s string, level logrus.Level) string {
	switch level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return f.wrap(s, ansiRed)
	case logrus.WarnLevel:
		return f.wrap(s, ansiYellow)
	case logrus.InfoLevel:
		return f.wrap(s, ansiGreen)
	case logrus.DebugLevel:
		return f.wrap(s, ansiBlue)
	default:
		return f.wrap(s, ansiMagenta)
	}
}

func limitRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func EnvDefaultString(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
	return def
}

// EnvDefaultDuration parses values like "250ms"; a bare integer is read as
// milliseconds.
func EnvDefaultDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}
