package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// RotatingFile is an io.WriteCloser that renames the file to path.1, path.2
// ... once it grows past maxBytes, keeping at most maxBackups old files.
type RotatingFile struct {
	mu         sync.Mutex
	path       string
	maxBytes   int64
	maxBackups int
	f          *os.File
	size       int64
}

func OpenRotatingFile(path string, maxBytes int64, maxBackups int) (*RotatingFile, error) {
	if path == "" {
		return nil, errors.New("log path is required")
	}
	if maxBytes <= 0 {
		return nil, errors.New("max log size must be positive")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	rf := &RotatingFile{path: path, maxBytes: maxBytes, maxBackups: max(maxBackups, 0)}
	if err := rf.open(os.O_APPEND); err != nil {
		return nil, err
	}
	if rf.size > rf.maxBytes {
		if err := rf.rotate(); err != nil {
			_ = rf.f.Close()
			return nil, err
		}
	}
	return rf, nil
}

func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.f == nil {
		return 0, os.ErrClosed
	}
	// A single oversized record still goes into an empty file.
	if rf.size > 0 && rf.size+int64(len(p)) > rf.maxBytes {
		if err := rf.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := rf.f.Write(p)
	rf.size += int64(n)
	return n, err
}

func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.f == nil {
		return nil
	}
	err := rf.f.Close()
	rf.f = nil
	return err
}

func (rf *RotatingFile) open(flag int) error {
	f, err := os.OpenFile(rf.path, os.O_CREATE|os.O_WRONLY|flag, 0o644)
	if err != nil {
		return err
	}
	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}
	rf.f, rf.size = f, size
	return nil
}

// rotate must be called with mu held.
func (rf *RotatingFile) rotate() error {
	if err := rf.f.Close(); err != nil {
		return err
	}
	rf.f = nil

	if rf.maxBackups == 0 {
		if err := removeIfExists(rf.path); err != nil {
			return err
		}
		return rf.open(os.O_TRUNC)
	}

	if err := removeIfExists(rf.backup(rf.maxBackups)); err != nil {
		return err
	}
	for i := rf.maxBackups - 1; i >= 1; i-- {
		if err := renameIfExists(rf.backup(i), rf.backup(i+1)); err != nil {
			return err
		}
	}
	if err := renameIfExists(rf.path, rf.backup(1)); err != nil {
		return err
	}
	return rf.open(os.O_TRUNC)
}

func (rf *RotatingFile) backup(i int) string {
	return fmt.Sprintf("%s.%d", rf.path, i)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func renameIfExists(from, to string) error {
	if err := os.Rename(from, to); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
