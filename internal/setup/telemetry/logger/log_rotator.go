// Package logger provides the file writer behind every session log.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// LogRotator is an io.Writer over a log file that keeps the file bounded to
// roughly maxLines lines. Once twice that many lines were written the file is
// rewritten with only the newest maxLines lines.
type LogRotator struct {
	mu       sync.Mutex
	file     *os.File
	filePath string
	lines    [][]byte // ring of the newest lines
	next     int
	filled   bool
	written  int
	maxLines int
}

// NewLogRotator opens (or creates) filePath for appending.
func NewLogRotator(filePath string, maxLines int) (*LogRotator, error) {
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file %s: %w", filePath, err)
	}

	return &LogRotator{
		file:     file,
		filePath: filePath,
		lines:    make([][]byte, maxLines),
		maxLines: maxLines,
	}, nil
}

// Write implements io.Writer.
func (w *LogRotator) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	if err != nil {
		return n, err
	}

	for line := range bytes.SplitSeq(bytes.TrimRight(p, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		w.remember(line)

		if w.written >= 2*w.maxLines {
			if err := w.rotate(); err != nil {
				return n, fmt.Errorf("failed to rotate log file: %w", err)
			}
			w.written = w.maxLines
		}
	}

	return n, nil
}

// Sync flushes the underlying file.
func (w *LogRotator) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// Close closes the underlying file.
func (w *LogRotator) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *LogRotator) remember(line []byte) {
	w.lines[w.next] = bytes.Clone(line)
	w.next = (w.next + 1) % w.maxLines
	if w.next == 0 {
		w.filled = true
	}
	w.written++
}

// recent returns the remembered lines oldest first.
func (w *LogRotator) recent() [][]byte {
	if !w.filled {
		return w.lines[:w.next]
	}
	out := make([][]byte, 0, w.maxLines)
	out = append(out, w.lines[w.next:]...)
	return append(out, w.lines[:w.next]...)
}

// rotate replaces the file with the remembered lines through a temp file rename.
func (w *LogRotator) rotate() error {
	temp, err := os.CreateTemp(filepath.Dir(w.filePath), "temp-log-")
	if err != nil {
		return err
	}
	tempPath := temp.Name()

	content := append(bytes.Join(w.recent(), []byte("\n")), '\n')
	if _, err := temp.Write(content); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return err
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	w.file.Close()
	if err := os.Rename(tempPath, w.filePath); err != nil {
		return err
	}

	file, err := os.OpenFile(w.filePath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.file = file

	return nil
}

var _ io.WriteCloser = (*LogRotator)(nil)
