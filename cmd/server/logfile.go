package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	maxLogBytes  = 6 << 20
	keepLogBytes = 5 << 20
)

// cappedLog is an append-only log file that, once it grows past max bytes,
// is cut down to its newest keep bytes.
type cappedLog struct {
	mu   sync.Mutex
	f    *os.File
	max  int64
	keep int64
}

func openCappedLog(path string, maxBytes, keepBytes int64) (*cappedLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l := &cappedLog{f: f, max: maxBytes, keep: keepBytes}
	if err := l.trim(); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

func (l *cappedLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.f.Write(p)
	if err != nil {
		return n, err
	}
	return n, l.trim()
}

func (l *cappedLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

func (l *cappedLog) trim() error {
	info, err := l.f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size <= l.max || l.keep >= size {
		return nil
	}

	tail := make([]byte, l.keep)
	n, err := l.f.ReadAt(tail, size-l.keep)
	if err != nil && err != io.EOF {
		return err
	}
	if err := l.f.Truncate(0); err != nil {
		return err
	}
	// O_APPEND writes land at the new end after the truncate.
	_, err = l.f.Write(tail[:n])
	return err
}
