package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// lineSink fans complete log lines out to one or more buffered outputs from
// a single goroutine. Enqueueing blocks when the channel is full, so lines
// are delayed under pressure but never dropped.
type lineSink struct {
	lines   chan []byte
	flushCh chan chan error
	drained chan struct{}
	once    sync.Once

	mu       sync.Mutex
	bufs     []*bufio.Writer
	writeErr error
}

func newLineSink(writers []io.Writer, bufSize int) *lineSink {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	bufs := make([]*bufio.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			bufs = append(bufs, bufio.NewWriterSize(w, bufSize))
		}
	}
	s := &lineSink{
		lines:   make(chan []byte, 256),
		flushCh: make(chan chan error),
		drained: make(chan struct{}),
		bufs:    bufs,
	}
	go s.run()
	return s
}

func (s *lineSink) run() {
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				s.flushBufs()
				close(s.drained)
				return
			}
			if len(line) == 0 {
				continue
			}
			if err := s.writeLine(line); err != nil {
				s.recordErr(err)
			}
		case ack := <-s.flushCh:
			ack <- s.flushBufs()
		}
	}
}

// Write enqueues the payload for asynchronous fan-out to all outputs.
func (s *lineSink) Write(p []byte) error {
	if err := s.err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	line := make([]byte, len(p))
	copy(line, p)
	s.lines <- line
	return nil
}

// Flush waits until everything buffered so far has reached the outputs.
func (s *lineSink) Flush() error {
	if err := s.err(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	s.flushCh <- ack
	return <-ack
}

// Close drains the queue and reports the first encountered write error.
func (s *lineSink) Close() error {
	s.once.Do(func() {
		close(s.lines)
	})
	<-s.drained
	return s.err()
}

func (s *lineSink) writeLine(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, out := range s.bufs {
		if _, err := out.Write(p); err != nil {
			return err
		}
		if err := out.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (s *lineSink) flushBufs() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, out := range s.bufs {
		if err := out.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *lineSink) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeErr
}

func (s *lineSink) recordErr(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr == nil {
		s.writeErr = err
	}
}
