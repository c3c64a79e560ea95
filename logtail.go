package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	tailRetryDelay = 10 * time.Second
	// maxLineLength caps one console line; longer lines are skipped.
	maxLineLength = 64 * 1024
)

// LineSource opens a stream of server console output.
type LineSource interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// LineSubscriber receives console lines from the LogTailer.
type LineSubscriber interface {
	HandleLine(line string)
}

// LogTailer reads console lines from a source and fans them out to
// subscribers, reopening the source whenever the stream ends.
type LogTailer struct {
	source      LineSource
	subscribers []LineSubscriber
	retryDelay  time.Duration
	log         logrus.FieldLogger
}

func NewLogTailer(source LineSource, log logrus.FieldLogger) *LogTailer {
	return &LogTailer{
		source:     source,
		retryDelay: tailRetryDelay,
		log:        log,
	}
}

func (t *LogTailer) Subscribe(sub LineSubscriber) {
	t.subscribers = append(t.subscribers, sub)
}

func (t *LogTailer) Run(ctx context.Context) {
	for {
		err := t.tail(ctx)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, errFileRotated) {
			t.log.WithField("source", t.source.Name()).Info("log file rotated, reopening")
			continue
		}
		if err != nil {
			t.log.WithError(err).WithField("source", t.source.Name()).
				Warnf("log tail error, retrying in %s", t.retryDelay)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(t.retryDelay):
		}
	}
}

func (t *LogTailer) tail(ctx context.Context) error {
	body, err := t.source.Open(ctx)
	if err != nil {
		return err
	}
	defer body.Close()
	t.log.WithField("source", t.source.Name()).Info("tailing server console")

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 4096), maxLineLength)
	split := &lineSplitter{max: maxLineLength}
	scanner.Split(split.split)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		for _, sub := range t.subscribers {
			sub.HandleLine(scanner.Text())
		}
	}
	if split.skipped > 0 {
		t.log.WithField("lines", split.skipped).Warn("skipped overlong console lines")
	}
	return scanner.Err()
}

// lineSplitter splits console input into newline terminated lines. A line
// reaching max bytes is discarded through its newline instead of failing
// the scan. An unterminated tail at end of input is dropped so it can be
// read again in full after a reopen.
type lineSplitter struct {
	max      int
	skipping bool
	skipped  int
}

func (s *lineSplitter) split(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		if s.skipping {
			s.skipping = false
			return i + 1, nil, nil
		}
		return i + 1, bytes.TrimSuffix(data[:i], []byte{'\r'}), nil
	}
	if len(data) >= s.max {
		if !s.skipping {
			s.skipped++
		}
		s.skipping = true
		return len(data), nil, nil
	}
	if atEOF {
		return len(data), nil, nil
	}
	return 0, nil, nil
}
