/*
 * Copyright 2025 The RuleGo Authors.
 *
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

// Package logger provides the logging facade used by compilation, planning
// and execution. The default implementation writes through logrus.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Level defines log levels
type Level int

const (
	// DEBUG debug level, displays detailed debug information
	DEBUG Level = iota
	// INFO info level, displays general information
	INFO
	// WARN warning level, displays warning information
	WARN
	// ERROR error level, only displays error information
	ERROR
	// OFF disables logging
	OFF
)

// String returns string representation of log level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case OFF:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(name string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DEBUG, true
	case "INFO", "":
		return INFO, true
	case "WARN", "WARNING":
		return WARN, true
	case "ERROR":
		return ERROR, true
	case "OFF", "NONE":
		return OFF, true
	}
	return INFO, false
}

// Fields 结构化日志字段
type Fields = logrus.Fields

// Logger interface defines basic methods for logging
type Logger interface {
	// Debug records debug level logs
	Debug(format string, args ...interface{})
	// Info records info level logs
	Info(format string, args ...interface{})
	// Warn records warning level logs
	Warn(format string, args ...interface{})
	// Error records error level logs
	Error(format string, args ...interface{})
	// SetLevel sets the log level
	SetLevel(level Level)
	// WithFields returns a logger attaching fields to every record
	WithFields(fields Fields) Logger
}

type logrusLogger struct {
	base  *logrus.Logger
	entry *logrus.Entry
}

// NewLogger creates a logrus backed logger writing text records to output.
//
// Example:
//
//	log := NewLogger(INFO, os.Stdout)
//	log.WithFields(Fields{"query_id": "q1"}).Info("executing")
func NewLogger(level Level, output io.Writer) Logger {
	base := logrus.New()
	base.SetOutput(output)
	base.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	l := &logrusLogger{base: base, entry: logrus.NewEntry(base)}
	l.SetLevel(level)
	return l
}

// NewJSONLogger creates a logger writing one JSON object per record.
func NewJSONLogger(level Level, output io.Writer) Logger {
	l := NewLogger(level, output).(*logrusLogger)
	l.base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	return l
}

// FromLogrus wraps an existing logrus logger.
func FromLogrus(base *logrus.Logger) Logger {
	return &logrusLogger{base: base, entry: logrus.NewEntry(base)}
}

func (l *logrusLogger) Debug(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Info(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warn(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Error(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// SetLevel 设置日志级别，OFF 时丢弃输出
func (l *logrusLogger) SetLevel(level Level) {
	switch level {
	case DEBUG:
		l.base.SetLevel(logrus.DebugLevel)
	case INFO:
		l.base.SetLevel(logrus.InfoLevel)
	case WARN:
		l.base.SetLevel(logrus.WarnLevel)
	case ERROR:
		l.base.SetLevel(logrus.ErrorLevel)
	default:
		l.base.SetLevel(logrus.PanicLevel)
	}
}

func (l *logrusLogger) WithFields(fields Fields) Logger {
	return &logrusLogger{base: l.base, entry: l.entry.WithFields(fields)}
}

// discardLogger is a logger that discards all log output
type discardLogger struct{}

// NewDiscardLogger creates a logger that discards all logs
func NewDiscardLogger() Logger {
	return discardLogger{}
}

func (discardLogger) Debug(string, ...interface{}) {}
func (discardLogger) Info(string, ...interface{})  {}
func (discardLogger) Warn(string, ...interface{})  {}
func (discardLogger) Error(string, ...interface{}) {}
func (discardLogger) SetLevel(Level)               {}
func (d discardLogger) WithFields(Fields) Logger   { return d }

// Global default logger
var defaultInstance = NewLogger(INFO, os.Stderr)

// SetDefault sets the global default logger
func SetDefault(logger Logger) {
	defaultInstance = logger
}

// GetDefault gets the global default logger
func GetDefault() Logger {
	return defaultInstance
}

// OrDefault returns l, or the default logger when l is nil.
func OrDefault(l Logger) Logger {
	if l == nil {
		return defaultInstance
	}
	return l
}

// 便捷的全局日志方法

// Debug uses the default logger to record debug information
func Debug(format string, args ...interface{}) {
	defaultInstance.Debug(format, args...)
}

// Info uses the default logger to record information
func Info(format string, args ...interface{}) {
	defaultInstance.Info(format, args...)
}

// Warn uses the default logger to record warnings
func Warn(format string, args ...interface{}) {
	defaultInstance.Warn(format, args...)
}

// Error uses the default logger to record errors
func Error(format string, args ...interface{}) {
	defaultInstance.Error(format, args...)
}
