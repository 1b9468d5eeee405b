// Package dclog is the process-global logging sink: a level plus a
// callback plus user data, receiving structured records. Device and
// parser family code call the package-level Debugf/Infof/Warnf/Errorf
// helpers the way pipeline/3_DATA_TRAINER/internal/logging's Logger
// wraps *log.Logger, but the sink here is a callback so a host
// application can redirect records anywhere (syslog, a test buffer,
// /dev/null) without this module depending on an output format.
package dclog

import (
	"fmt"
	"os"
	"runtime"
	"sync"
)

// Level selects which records reach the sink.
type Level int

const (
	LevelNone Level = iota
	LevelError
	LevelWarning
	LevelInfo
	LevelDebug
	LevelAll
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelAll:
		return "all"
	default:
		return "unknown"
	}
}

// Record is the structured payload delivered to a Sink.
type Record struct {
	Level    Level
	File     string
	Line     int
	Function string
	Message  string
}

// Sink receives log records. Implementations must not block for long or
// re-enter the device that produced the record.
type Sink func(Record)

var (
	mu    sync.RWMutex
	sink  Sink
	level = LevelWarning
)

// SetSink installs the process-wide sink. A nil sink falls back to
// writing directly to stderr: a record never writes to stderr
// directly unless no sink is installed.
func SetSink(s Sink) {
	mu.Lock()
	defer mu.Unlock()
	sink = s
}

// SetLevel sets the minimum level of interest; records above it are
// dropped before reaching the sink.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

func emit(l Level, format string, args ...interface{}) {
	mu.RLock()
	s, threshold := sink, level
	mu.RUnlock()

	if l > threshold {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if s == nil {
		fmt.Fprintln(os.Stderr, prefix(l)+msg)
		return
	}

	pc, file, line, ok := runtime.Caller(2)
	fn := "unknown"
	if ok {
		if f := runtime.FuncForPC(pc); f != nil {
			fn = f.Name()
		}
	}
	s(Record{Level: l, File: file, Line: line, Function: fn, Message: msg})
}

func prefix(l Level) string {
	switch l {
	case LevelError:
		return "[ERROR] "
	case LevelWarning:
		return "[WARN] "
	case LevelInfo:
		return "[INFO] "
	case LevelDebug:
		return "[DEBUG] "
	default:
		return ""
	}
}

func Errorf(format string, args ...interface{}) { emit(LevelError, format, args...) }
func Warnf(format string, args ...interface{})  { emit(LevelWarning, format, args...) }
func Infof(format string, args ...interface{})  { emit(LevelInfo, format, args...) }
func Debugf(format string, args ...interface{}) { emit(LevelDebug, format, args...) }
