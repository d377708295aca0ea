// Package logger provides the leveled run log written during figure runs.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Logger provides leveled logging (debug/info/warning/error) to the console
// and, optionally, to an appended run log file.
type Logger struct {
	debugLog   *log.Logger
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	verbose    bool
	file       *os.File
	mu         sync.Mutex
}

// New creates a Logger writing info and debug to out and warnings and errors
// to errOut. Debug lines are dropped unless verbose is set.
func New(out, errOut io.Writer, verbose bool) *Logger {
	l := &Logger{verbose: verbose}
	l.setupLoggers(out, errOut)
	return l
}

// NewWithFile creates a console Logger that also appends every line to path
func NewWithFile(path string, verbose bool) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	l := &Logger{verbose: verbose, file: file}
	l.setupLoggers(io.MultiWriter(os.Stdout, file), io.MultiWriter(os.Stderr, file))
	return l, nil
}

// Discard returns a Logger that drops everything. Tests use it.
func Discard() *Logger {
	return New(io.Discard, io.Discard, false)
}

func (l *Logger) setupLoggers(out, errOut io.Writer) {
	l.debugLog = log.New(out, "DEBUG   ", log.Ldate|log.Ltime|log.Lmsgprefix)
	l.infoLog = log.New(out, "INFO    ", log.Ldate|log.Ltime|log.Lmsgprefix)
	l.warningLog = log.New(out, "WARNING ", log.Ldate|log.Ltime|log.Lmsgprefix)
	l.errorLog = log.New(errOut, "ERROR   ", log.Ldate|log.Ltime|log.Lmsgprefix)
}

// Debugf logs detail lines when verbose output is enabled
func (l *Logger) Debugf(format string, v ...any) {
	if !l.verbose {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugLog.Printf(format, v...)
}

// Infof logs progress lines
func (l *Logger) Infof(format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Printf(format, v...)
}

// Warningf logs recoverable problems
func (l *Logger) Warningf(format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Printf(format, v...)
}

// Errorf logs failures
func (l *Logger) Errorf(format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Printf(format, v...)
}

// Close closes the run log file, if any
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
