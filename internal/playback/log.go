package playback

import (
	"io"
	"strings"
	"sync"
)

// LogSink receives one line per tick, in order.
type LogSink interface {
	Append(line string)
}

type LogFunc func(line string)

func (f LogFunc) Append(line string) { f(line) }

var discardLog = LogFunc(func(string) {})

// MemoryLog keeps the latest max lines.
type MemoryLog struct {
	mu    sync.Mutex
	lines []string
	max   int
	total int
}

// NewMemoryLog keeps at most max lines; max <= 0 keeps everything.
func NewMemoryLog(max int) *MemoryLog {
	return &MemoryLog{max: max}
}

func (l *MemoryLog) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
	l.total++
	if l.max > 0 && len(l.lines) > l.max {
		l.lines = append(l.lines[:0:0], l.lines[len(l.lines)-l.max:]...)
	}
}

func (l *MemoryLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// Total counts every appended line, including trimmed ones.
func (l *MemoryLog) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

func (l *MemoryLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.lines) == 0 {
		return ""
	}
	return strings.Join(l.lines, "\n") + "\n"
}

// WriterLog writes each line to w followed by a newline.
type WriterLog struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterLog(w io.Writer) *WriterLog {
	return &WriterLog{w: w}
}

func (l *WriterLog) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.w, line+"\n")
}
