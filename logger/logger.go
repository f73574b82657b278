// Package logger provides the leveled, allocation-light logger used
// across the concurrency core. It keeps the package-level, atomic
// level-switch shape used by a couple of the storage-engine packages in
// this codebase rather than pulling in a structured-logging library,
// since the whole point of this package is to stay on the hot
// lock-acquisition path without adding a dependency there.
package logger

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

// Level is the severity of a log message.
type Level int32

const (
	Trace Level = iota
	Debug
	Info
	Warn
	Error
)

var levelNames = map[Level]string{
	Trace: "TRACE",
	Debug: "DEBUG",
	Info:  "INFO",
	Warn:  "WARN",
	Error: "ERROR",
}

var (
	currentLevel atomic.Int32
	out          = log.New(os.Stdout, "", 0)
	processID    = os.Getpid()
)

func init() {
	currentLevel.Store(int32(Info))
}

// SetLevel changes the minimum level that will be logged.
func SetLevel(l Level) {
	currentLevel.Store(int32(l))
}

// ParseLevel maps a level name to a Level, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(s) {
	case "TRACE":
		return Trace, nil
	case "DEBUG":
		return Debug, nil
	case "INFO":
		return Info, nil
	case "WARN":
		return Warn, nil
	case "ERROR":
		return Error, nil
	default:
		return 0, fmt.Errorf("logger: invalid level %q", s)
	}
}

func logMessage(level Level, format string, args ...interface{}) {
	if level < Level(currentLevel.Load()) {
		return
	}
	ts := time.Now().Format("2006/01/02 15:04:05.000000")
	msg := fmt.Sprintf(format, args...)
	out.Printf("%s [%d:%d] [%s] %s", ts, processID, goroutineID(), levelNames[level], msg)
}

// goroutineID parses the calling goroutine's id out of a one-frame
// stack trace, the same trick internal/gid uses for lock reentrancy.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := strings.Fields(string(buf[:n]))
	if len(fields) < 2 {
		return 0
	}
	var id int64
	fmt.Sscanf(fields[1], "%d", &id)
	return id
}

func Tracef(format string, args ...interface{}) { logMessage(Trace, format, args...) }
func Debugf(format string, args ...interface{}) { logMessage(Debug, format, args...) }
func Infof(format string, args ...interface{})  { logMessage(Info, format, args...) }
func Warnf(format string, args ...interface{})  { logMessage(Warn, format, args...) }
func Errorf(format string, args ...interface{}) { logMessage(Error, format, args...) }

// StaleLock logs the warning emitted when a lock has been held longer
// than a configured threshold, correlated with an id so the diagnostics
// server can cross-reference it with a specific acquisition event.
func StaleLock(correlationID, tokenDesc string, held time.Duration) {
	Warnf("STALE_LOCK id=%s token=%s held=%s", correlationID, tokenDesc, held)
}
