package relay

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
)

type Role string

const (
	Driver   Role = "driver"
	Observer Role = "observer"
)

const writeTimeout = 10 * time.Second

// ClientSession is one live connection to the broker. It holds nothing but
// the connection, its role and a queue of frames waiting to be written.
type ClientSession struct {
	ID   string
	Role Role

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	log       logrus.FieldLogger
}

func newClientSession(conn *websocket.Conn, role Role, queueSize int, log logrus.FieldLogger) *ClientSession {
	id := uuid.New().String()
	return &ClientSession{
		ID:   id,
		Role: role,
		conn: conn,
		send: make(chan []byte, queueSize),
		done: make(chan struct{}),
		log:  log.WithFields(logrus.Fields{"client": id, "role": role}),
	}
}

// enqueue queues a frame for writing. It reports false when the client is
// closed or too far behind to keep up.
func (client *ClientSession) enqueue(frame []byte) bool {
	select {
	case <-client.done:
		return false
	default:
	}

	select {
	case client.send <- frame:
		return true
	default:
		return false
	}
}

// writeLoop writes queued frames in order and pings the peer every
// heartbeat. It returns the first write or ping failure.
func (client *ClientSession) writeLoop(ctx context.Context, heartbeat time.Duration) error {
	ping := time.NewTicker(heartbeat)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-client.done:
			return nil
		case frame := <-client.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := client.conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				return err
			}
		case <-ping.C:
			pingCtx, cancel := context.WithTimeout(ctx, heartbeat)
			err := client.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func (client *ClientSession) close(code websocket.StatusCode, reason string) {
	client.closeOnce.Do(func() {
		close(client.done)
		_ = client.conn.Close(code, reason)
	})
}
