package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

var errFileRotated = errors.New("log file rotated")

// FileSource follows a console log file. The first Open starts at the end
// of the file. Later Opens resume after the last complete line handed out,
// unless the file was rotated, replaced or truncated, in which case they
// start at the top.
type FileSource struct {
	path    string
	started bool
	rotated bool
	info    os.FileInfo
	// offset is the position just past the last newline returned by Read.
	offset int64
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: filepath.Clean(path)}
}

func (s *FileSource) Name() string { return "file " + s.path }

func (s *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", s.path, err)
	}

	var offset int64
	switch {
	case !s.started:
		offset = fi.Size()
	case s.rotated, s.info == nil, !os.SameFile(s.info, fi), fi.Size() < s.offset:
		offset = 0
	default:
		offset = s.offset
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek %s: %w", s.path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	// Watch the directory so re-creation of the file is seen too.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		f.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	s.started, s.rotated, s.info, s.offset = true, false, fi, offset
	return &fileFollower{ctx: ctx, src: s, f: f, watcher: watcher, pos: offset}, nil
}

// fileFollower reads a file and blocks at EOF until more is written.
type fileFollower struct {
	ctx     context.Context
	src     *FileSource
	f       *os.File
	watcher *fsnotify.Watcher
	pos     int64
}

func (t *fileFollower) Read(p []byte) (int, error) {
	for {
		n, err := t.f.Read(p)
		if n > 0 {
			if i := bytes.LastIndexByte(p[:n], '\n'); i >= 0 {
				t.src.offset = t.pos + int64(i) + 1
			}
			t.pos += int64(n)
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}

		// Truncated in place: start over.
		if fi, err := t.f.Stat(); err == nil && fi.Size() < t.pos {
			if _, err := t.f.Seek(0, io.SeekStart); err != nil {
				return 0, err
			}
			t.pos, t.src.offset = 0, 0
			continue
		}

		if err := t.wait(); err != nil {
			if errors.Is(err, errFileRotated) {
				t.src.rotated = true
			}
			return 0, err
		}
	}
}

func (t *fileFollower) wait() error {
	for {
		select {
		case <-t.ctx.Done():
			return t.ctx.Err()
		case ev, ok := <-t.watcher.Events:
			if !ok {
				return io.EOF
			}
			if filepath.Clean(ev.Name) != t.src.path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write):
				return nil
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename), ev.Has(fsnotify.Create):
				return errFileRotated
			}
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return io.EOF
			}
			return fmt.Errorf("watch %s: %w", t.src.path, err)
		}
	}
}

func (t *fileFollower) Close() error {
	werr := t.watcher.Close()
	if err := t.f.Close(); err != nil {
		return err
	}
	return werr
}
