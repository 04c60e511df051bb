package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	outboxSize = 16
)

var (
	// ErrSinkBusy is returned when a sink's outbox is full and the message
	// was dropped.
	ErrSinkBusy = errors.New("sink outbox full, message dropped")
	// ErrSinkClosed is returned by Send after Close.
	ErrSinkClosed = errors.New("sink closed")
)

// wsSink writes messages to a WebSocket connection from its own goroutine.
// Send only enqueues, so a stalled client never blocks the caller.
type wsSink struct {
	id     string
	conn   *websocket.Conn
	outbox chan Message
	done   chan struct{}
	// writerDone is closed when the write loop returns.
	writerDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func newWSSink(id string, conn *websocket.Conn) *wsSink {
	s := &wsSink{
		id:         id,
		conn:       conn,
		outbox:     make(chan Message, outboxSize),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

func (s *wsSink) ID() string {
	return s.id
}

func (s *wsSink) Send(_ context.Context, m Message) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}

	select {
	case s.outbox <- m:
		return nil
	default:
		return ErrSinkBusy
	}
}

func (s *wsSink) writeLoop() {
	defer close(s.writerDone)
	for {
		select {
		case <-s.done:
			return
		case m := <-s.outbox:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				_ = s.conn.Close()
				return
			}
			if err := s.conn.WriteJSON(m); err != nil {
				// The read loop sees the closed connection and unbinds the sink.
				_ = s.conn.Close()
				return
			}
		}
	}
}

// Close stops the writer, dropping queued messages, and closes the
// connection with a going-away frame.
func (s *wsSink) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.writerDone != nil {
			<-s.writerDone
		}
		if s.conn == nil {
			return
		}
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "superseded"),
			time.Now().Add(time.Second),
		)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
