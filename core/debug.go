package core

import "fmt"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Async debug output channel, nil until InitAsyncDebug
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, a host logger, etc.
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		writer = func(s string) {}
	}
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine. Afterwards Debugf
// queues messages instead of writing them, and drops them when the queue is
// full. Call this from main() after SetDebugWriter.
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		debugPrintln(msg)
	}
}

// Debugf formats only when debug output is enabled, keeping the bus paths
// free of formatting cost otherwise.
func Debugf(format string, args ...interface{}) {
	if !debugEnabled {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if debugChan == nil {
		debugPrintln(msg)
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}
