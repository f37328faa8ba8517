package pub

import (
	"bufio"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jabolina/go-msg/pkg/msg/transport"
	"github.com/jabolina/go-msg/pkg/msg/types"
	"github.com/jabolina/go-msg/pkg/msg/wire"
)

// controlFrame is a subscribe/unsubscribe request decoded off a subscriber's
// connection, forwarded to the backend's driver loop for the only goroutine
// allowed to mutate a session's topic set.
type controlFrame struct {
	session *session
	tag     byte
	topic   string
}

// session is one subscriber's per-connection state: a drop-oldest ring of
// pending wire frames (spec §4.4) plus the topic set the backend's driver
// loop uses to decide what gets enqueued. The ring is the only field
// touched by more than one goroutine (the driver loop enqueues, the write
// goroutine drains), so it alone is mutex-guarded; topics is touched only
// by the driver loop.
type session struct {
	addr   string
	conn   transport.Io
	br     *bufio.Reader
	bw     *bufio.Writer
	codec  *wire.PubSubCodec
	logger types.Logger

	maxMsgs  int
	maxBytes int

	mu         sync.Mutex
	queue      [][]byte
	queueBytes int
	dropped    int64

	topics map[string]struct{}

	notify  chan struct{}
	control chan<- controlFrame

	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(parent context.Context, addr string, conn transport.Io, br *bufio.Reader, bw *bufio.Writer, codec *wire.PubSubCodec, control chan<- controlFrame, logger types.Logger, maxMsgs, maxBytes int) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		addr:     addr,
		conn:     conn,
		br:       br,
		bw:       bw,
		codec:    codec,
		logger:   logger,
		maxMsgs:  maxMsgs,
		maxBytes: maxBytes,
		topics:   make(map[string]struct{}),
		notify:   make(chan struct{}, 1),
		control:  control,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// subscribed reports whether topic is in this session's current set. Called
// only from the driver loop.
func (s *session) subscribed(topic string) bool {
	_, ok := s.topics[topic]
	return ok
}

// Dropped returns the number of messages this subscriber's ring has ever
// discarded under backpressure.
func (s *session) Dropped() int64 {
	return atomic.LoadInt64(&s.dropped)
}

// enqueue appends frame to the ring, dropping the oldest entries until back
// within maxMsgs/maxBytes if necessary. Safe for concurrent use; called by
// the driver loop on every matching Publish.
func (s *session) enqueue(frame []byte) {
	s.mu.Lock()
	s.queue = append(s.queue, frame)
	s.queueBytes += len(frame)
	for (len(s.queue) > s.maxMsgs || s.queueBytes > s.maxBytes) && len(s.queue) > 1 {
		s.queueBytes -= len(s.queue[0])
		s.queue = s.queue[1:]
		atomic.AddInt64(&s.dropped, 1)
	}
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// drain removes and returns everything currently queued.
func (s *session) drain() [][]byte {
	s.mu.Lock()
	out := s.queue
	s.queue = nil
	s.queueBytes = 0
	s.mu.Unlock()
	return out
}

// readLoop decodes subscribe/unsubscribe control frames and forwards them to
// the driver loop. A subscriber never sends data frames; any TagData frame
// received here is a protocol violation and closes the session.
func (s *session) readLoop() {
	defer s.cancel()
	for {
		frame, err := s.codec.Decode(s.br)
		if err != nil {
			s.logger.Debugf("pub: session %s read error: %v", s.addr, err)
			return
		}
		if frame.Tag == wire.TagData {
			s.logger.Warnf("pub: session %s sent a data frame, closing", s.addr)
			return
		}
		select {
		case s.control <- controlFrame{session: s, tag: frame.Tag, topic: frame.Topic}:
		case <-s.ctx.Done():
			return
		}
	}
}

// writeLoop flushes the ring to the wire either when notified of new data or
// on the next flush-interval tick, whichever comes first; both paths drain
// everything currently queued in one pass to amortize the syscall.
func (s *session) writeLoop(flushInterval time.Duration) {
	defer s.cancel()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.notify:
		case <-ticker.C:
		case <-s.ctx.Done():
			return
		}

		frames := s.drain()
		if len(frames) == 0 {
			continue
		}
		for _, f := range frames {
			if _, err := s.bw.Write(f); err != nil {
				s.logger.Debugf("pub: session %s write error: %v", s.addr, err)
				return
			}
		}
		if err := s.bw.Flush(); err != nil {
			s.logger.Debugf("pub: session %s flush error: %v", s.addr, err)
			return
		}
	}
}
