// logger/logger.go
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the lowercase level name used in configuration files.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "debug"
	case INFO:
		return "info"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel maps a configuration string onto a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

type sink struct {
	debug, info, warn, err *log.Logger
}

func newSink(w io.Writer, colored bool) *sink {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	prefix := func(color, label string) string {
		if colored {
			return color + label + colorReset
		}
		return label
	}
	return &sink{
		debug: log.New(w, prefix(colorGray, "[DEBUG] "), flags),
		info:  log.New(w, prefix(colorReset, "[INFO]  "), flags),
		warn:  log.New(w, prefix(colorYellow, "[WARN]  "), flags),
		err:   log.New(w, prefix(colorRed, "[ERROR] "), flags),
	}
}

func (s *sink) pick(level LogLevel) *log.Logger {
	switch level {
	case DEBUG:
		return s.debug
	case INFO:
		return s.info
	case WARN:
		return s.warn
	default:
		return s.err
	}
}

type Logger struct {
	console  *sink
	file     *sink
	handle   *os.File
	minLevel LogLevel
}

var (
	defaultLogger *Logger
	once          sync.Once
	mu            sync.RWMutex
)

// ensureInitialized creates a console logger at INFO if Init was never called
func ensureInitialized() {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if defaultLogger == nil {
			defaultLogger = &Logger{console: newSink(os.Stdout, true), minLevel: INFO}
		}
	})
}

// Init sets up console and/or file output.
// If filename is empty, logs only to console.
// If console is false, logs only to file.
func Init(filename string, console bool, level LogLevel) error {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()

	if defaultLogger.handle != nil {
		defaultLogger.handle.Close()
	}

	l := &Logger{minLevel: level}
	if filename != "" {
		file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		l.handle = file
		l.file = newSink(file, false)
	}
	if console {
		l.console = newSink(os.Stdout, true)
	}
	if l.console == nil && l.file == nil {
		return fmt.Errorf("no output destination specified")
	}

	defaultLogger = l
	return nil
}

// SetOutput sends all log output to w without colors. Mostly useful in tests.
func SetOutput(w io.Writer) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger.console = nil
	defaultLogger.file = newSink(w, false)
}

// SetLevel sets the minimum log level (DEBUG, INFO, WARN, ERROR)
func SetLevel(level LogLevel) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger.minLevel = level
}

// Close closes the log file if one is open
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if defaultLogger != nil && defaultLogger.handle != nil {
		defaultLogger.handle.Close()
		defaultLogger.handle = nil
		defaultLogger.file = nil
	}
}

func output(level LogLevel, msg string) {
	ensureInitialized()
	mu.RLock()
	defer mu.RUnlock()

	l := defaultLogger
	if level < l.minLevel {
		return
	}
	// depth 3: output -> Infof -> caller
	if l.console != nil {
		l.console.pick(level).Output(3, msg)
	}
	if l.file != nil {
		l.file.pick(level).Output(3, msg)
	}
}

// Debug logs a debug message
func Debug(v ...interface{}) { output(DEBUG, fmt.Sprint(v...)) }

// Debugf logs a formatted debug message
func Debugf(format string, v ...interface{}) { output(DEBUG, fmt.Sprintf(format, v...)) }

// Info logs an info message
func Info(v ...interface{}) { output(INFO, fmt.Sprint(v...)) }

// Infof logs a formatted info message
func Infof(format string, v ...interface{}) { output(INFO, fmt.Sprintf(format, v...)) }

// Warn logs a warning message
func Warn(v ...interface{}) { output(WARN, fmt.Sprint(v...)) }

// Warnf logs a formatted warning message
func Warnf(format string, v ...interface{}) { output(WARN, fmt.Sprintf(format, v...)) }

// Error logs an error message
func Error(v ...interface{}) { output(ERROR, fmt.Sprint(v...)) }

// Errorf logs a formatted error message
func Errorf(format string, v ...interface{}) { output(ERROR, fmt.Sprintf(format, v...)) }

// Fatal logs an error message and exits the program
func Fatal(v ...interface{}) {
	output(ERROR, fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf logs a formatted error message and exits the program
func Fatalf(format string, v ...interface{}) {
	output(ERROR, fmt.Sprintf(format, v...))
	os.Exit(1)
}
