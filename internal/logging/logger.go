package logging

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kingrea/carryover/internal/config"
)

// Logger appends timestamped lines to .carryover/logs/carryover.log so every
// reapplication decision of a build can be inspected after the fact.
type Logger struct {
	path  string
	out   io.WriteCloser
	clock func() time.Time
}

// New creates (or reuses) the log file for the given project directory.
func New(projectDir string) (*Logger, error) {
	logDir := filepath.Join(projectDir, config.Dir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logDir, "carryover.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return &Logger{path: path, out: f, clock: time.Now}, nil
}

// Path returns the file backing this logger.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Close releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.out == nil {
		return nil
	}
	return l.out.Close()
}

// Printf writes a single timestamped line to the log file.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.out == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	line = strings.TrimRight(line, "\n")
	timestamp := l.clock().Format(time.RFC3339)
	fmt.Fprintf(l.out, "[%s] %s\n", timestamp, line)
}

// Tail returns up to maxLines of the most recent lines in the log at path,
// along with the total number of lines. A missing file yields nothing.
func Tail(path string, maxLines int) ([]string, int) {
	if maxLines <= 0 {
		return nil, 0
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	total := len(lines)
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}
