// Package gid extracts the calling goroutine's runtime id, used by the
// reentrant lock core to recognize when the same logical thread of
// execution is re-entering a lock it already holds. Go has no public
// goroutine-local storage, so this parses the id out of a one-frame
// stack trace, the same trick a couple of logging libraries use to tag
// log lines with the emitting goroutine.
package gid

import (
	"runtime"
	"strconv"
	"strings"
)

// Current returns the calling goroutine's runtime id. It is safe to call
// concurrently; each call only touches the calling goroutine's own stack.
func Current() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := strings.Fields(string(buf[:n]))
	if len(fields) < 2 {
		return 0
	}
	id, _ := strconv.ParseInt(fields[1], 10, 64)
	return id
}
