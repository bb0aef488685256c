package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/they4kman/sweeprelay/game"
	"nhooyr.io/websocket"
)

var ErrNotConnected = errors.New("not connected to broker")

const DefaultRetryDelay = 5 * time.Second

type LinkConfig struct {
	URL string
	// Fixed delay before each reconnection attempt. There is no backoff or
	// jitter; a deployment beyond two local processes would want both.
	RetryDelay time.Duration

	// Called with every full state received
	OnState func(*game.GameState)
	// Called with every action notification received
	OnAction     func(Action)
	OnConnect    func()
	OnDisconnect func(error)

	Logger logrus.FieldLogger
}

// Link keeps a single logical connection to the broker, redialing after a
// fixed delay whenever the connection drops or cannot be established.
type Link struct {
	config LinkConfig
	log    logrus.FieldLogger
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	conn       *websocket.Conn
	retry      *time.Timer
	closed     bool
	lastAction *Action
}

// NewLink starts connecting to config.URL in the background. The link runs
// until Close is called or ctx is cancelled.
func NewLink(ctx context.Context, config LinkConfig) *Link {
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultRetryDelay
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	link := &Link{
		config: config,
		log:    config.Logger.WithFields(logrus.Fields{"component": "link", "url": config.URL}),
	}
	link.ctx, link.cancel = context.WithCancel(ctx)

	go link.connect()
	return link
}

func (link *Link) connect() {
	link.mu.Lock()
	if link.closed {
		link.mu.Unlock()
		return
	}
	link.retry = nil
	link.mu.Unlock()

	conn, _, err := websocket.Dial(link.ctx, link.config.URL, nil)
	if err != nil {
		link.log.WithError(err).Warnf("connecting failed, retrying in %s", link.config.RetryDelay)
		link.scheduleRetry()
		return
	}
	conn.SetReadLimit(maxMessageSize)

	link.mu.Lock()
	if link.closed {
		link.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	link.conn = conn
	if link.retry != nil {
		link.retry.Stop()
		link.retry = nil
	}
	link.mu.Unlock()

	link.log.Info("connected to broker")
	if link.config.OnConnect != nil {
		link.config.OnConnect()
	}

	err = link.readLoop(conn)

	link.mu.Lock()
	if link.conn == conn {
		link.conn = nil
	}
	closed := link.closed
	link.mu.Unlock()

	if closed {
		return
	}
	link.log.WithError(err).Warnf("disconnected from broker, retrying in %s", link.config.RetryDelay)
	if link.config.OnDisconnect != nil {
		link.config.OnDisconnect(err)
	}
	link.scheduleRetry()
}

// scheduleRetry arms the retry timer unless one is already pending
func (link *Link) scheduleRetry() {
	link.mu.Lock()
	defer link.mu.Unlock()

	if link.closed || link.retry != nil || link.ctx.Err() != nil {
		return
	}
	link.retry = time.AfterFunc(link.config.RetryDelay, link.connect)
}

func (link *Link) readLoop(conn *websocket.Conn) error {
	for {
		_, frame, err := conn.Read(link.ctx)
		if err != nil {
			return err
		}
		link.handle(frame)
	}
}

func (link *Link) handle(frame []byte) {
	envelope, err := DecodeEnvelope(frame)
	if err != nil {
		link.log.WithError(err).Warn("dropping message")
		return
	}

	switch envelope.Type {
	case TypeGameState:
		state, err := envelope.GameState()
		if err != nil {
			link.log.WithError(err).Warn("dropping message")
			return
		}
		if link.config.OnState != nil {
			link.config.OnState(state)
		}
	case TypeAction:
		action := envelope.ToAction()
		link.mu.Lock()
		link.lastAction = &action
		link.mu.Unlock()
		if link.config.OnAction != nil {
			link.config.OnAction(action)
		}
	}
}

// Send writes a raw frame to the broker
func (link *Link) Send(ctx context.Context, frame []byte) error {
	link.mu.Lock()
	conn := link.conn
	link.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, frame)
}

func (link *Link) publish(frame []byte, kind string) {
	if err := link.Send(link.ctx, frame); err != nil {
		entry := link.log.WithField("type", kind)
		if errors.Is(err, ErrNotConnected) {
			entry.Debug("not connected, message dropped")
		} else {
			entry.WithError(err).Warn("sending message failed")
		}
	}
}

// PublishState sends state to the broker, which forwards it to observers.
// Delivery is best effort: while disconnected the state is dropped.
func (link *Link) PublishState(state *game.GameState) {
	frame, err := StateMessage(state)
	if err != nil {
		link.log.WithError(err).Error("encoding game state")
		return
	}
	link.publish(frame, TypeGameState)
}

func (link *Link) PublishAction(name string, data map[string]interface{}) {
	frame, err := ActionMessage(name, data)
	if err != nil {
		link.log.WithError(err).WithField("action", name).Error("encoding action")
		return
	}
	link.publish(frame, TypeAction)
}

func (link *Link) Connected() bool {
	link.mu.Lock()
	defer link.mu.Unlock()
	return link.conn != nil
}

// LastAction returns the most recent action notification received
func (link *Link) LastAction() (Action, bool) {
	link.mu.Lock()
	defer link.mu.Unlock()
	if link.lastAction == nil {
		return Action{}, false
	}
	return *link.lastAction, true
}

// Close tears the link down and cancels any pending retry
func (link *Link) Close() error {
	link.mu.Lock()
	if link.closed {
		link.mu.Unlock()
		return nil
	}
	link.closed = true
	if link.retry != nil {
		link.retry.Stop()
		link.retry = nil
	}
	conn := link.conn
	link.conn = nil
	link.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "")
	}
	link.cancel()
	return err
}
