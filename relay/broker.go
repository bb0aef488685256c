package relay

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/they4kman/sweeprelay/game"
	"github.com/they4kman/sweeprelay/util/collections"
	"nhooyr.io/websocket"
)

var errSlowClient = errors.New("send queue full")

type BrokerConfig struct {
	// Connections on these paths are drivers; every other path is an observer
	DriverPaths []string
	// Interval between pings sent to each client
	HeartbeatInterval time.Duration
	// Frames buffered per client before it is considered dead
	SendQueueSize int

	Logger logrus.FieldLogger
}

// Broker relays game states and actions between one driver and any number of
// observers. It never runs game logic; it only remembers the last state it
// saw so it can be handed to clients as they connect.
type Broker struct {
	config BrokerConfig
	log    logrus.FieldLogger

	mu      sync.Mutex
	clients collections.Set[*ClientSession]
	// Last game_state frame broadcast, nil before any game started
	state []byte
}

func NewBroker(config BrokerConfig) *Broker {
	if len(config.DriverPaths) == 0 {
		config.DriverPaths = []string{"/mcp"}
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = 30 * time.Second
	}
	if config.SendQueueSize <= 0 {
		config.SendQueueSize = 64
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	return &Broker{
		config:  config,
		log:     config.Logger.WithField("component", "broker"),
		clients: make(collections.Set[*ClientSession]),
	}
}

// Handler serves websocket connections on every path, plus /health
func (broker *Broker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/", broker)
	return mux
}

func (broker *Broker) roleFor(path string) Role {
	for _, driverPath := range broker.config.DriverPaths {
		if path == driverPath {
			return Driver
		}
	}
	return Observer
}

func (broker *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		broker.log.WithError(err).Warn("websocket accept failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := newClientSession(conn, broker.roleFor(r.URL.Path), broker.config.SendQueueSize, broker.log)
	broker.register(client)

	go func() {
		if err := client.writeLoop(ctx, broker.config.HeartbeatInterval); err != nil {
			broker.remove(client, err)
		}
	}()

	for {
		_, frame, err := conn.Read(ctx)
		if err != nil {
			broker.remove(client, err)
			return
		}
		broker.handle(client, frame)
	}
}

func (broker *Broker) register(client *ClientSession) {
	broker.mu.Lock()
	defer broker.mu.Unlock()

	broker.clients.Add(client)
	if broker.state != nil {
		client.enqueue(broker.state)
	}
	client.log.WithField("clients", len(broker.clients)).Info("client connected")
}

func (broker *Broker) remove(client *ClientSession, reason error) {
	broker.mu.Lock()
	wasLive := broker.clients.Contains(client)
	broker.clients.Remove(client)
	remaining := len(broker.clients)
	broker.mu.Unlock()

	if wasLive {
		entry := client.log.WithField("clients", remaining)
		if status := websocket.CloseStatus(reason); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			entry.Info("client disconnected")
		} else {
			entry.WithError(reason).Warn("client dropped")
		}
	}
	// The close handshake can take seconds; never make a publisher wait on it
	go client.close(websocket.StatusNormalClosure, "")
}

// handle forwards driver messages to every other client. Malformed frames
// and frames from observers are logged and dropped.
func (broker *Broker) handle(sender *ClientSession, frame []byte) {
	envelope, err := DecodeEnvelope(frame)
	if err != nil {
		sender.log.WithError(err).Warn("dropping message")
		return
	}

	entry := sender.log.WithField("type", envelope.Type)
	if sender.Role != Driver {
		entry.Warn("dropping message from observer")
		return
	}
	if envelope.Type == TypeGameState {
		if _, err := envelope.GameState(); err != nil {
			entry.WithError(err).Warn("dropping message")
			return
		}
	}
	entry.Debug("forwarding message")

	// Forwarded states are remembered too, so late observers catch up
	broker.broadcast(frame, sender, envelope.Type == TypeGameState)
}

// broadcast queues frame for every live client except `except` (which may be
// nil). Frames are queued under the lock, so each client sees them in the
// order they were issued.
func (broker *Broker) broadcast(frame []byte, except *ClientSession, remember bool) {
	var dead []*ClientSession

	broker.mu.Lock()
	if remember {
		broker.state = frame
	}
	for client := range broker.clients {
		if client == except {
			continue
		}
		if !client.enqueue(frame) {
			dead = append(dead, client)
		}
	}
	broker.mu.Unlock()

	for _, client := range dead {
		broker.remove(client, errSlowClient)
	}
}

// PublishState remembers state and sends it to every live client
func (broker *Broker) PublishState(state *game.GameState) {
	frame, err := StateMessage(state)
	if err != nil {
		broker.log.WithError(err).Error("encoding game state")
		return
	}
	broker.broadcast(frame, nil, true)
}

// PublishAction sends a notification to every live client without changing
// the remembered state
func (broker *Broker) PublishAction(name string, data map[string]interface{}) {
	frame, err := ActionMessage(name, data)
	if err != nil {
		broker.log.WithError(err).WithField("action", name).Error("encoding action")
		return
	}
	broker.broadcast(frame, nil, false)
}

// State returns the remembered game state, or nil before any game started
func (broker *Broker) State() *game.GameState {
	broker.mu.Lock()
	frame := broker.state
	broker.mu.Unlock()

	if frame == nil {
		return nil
	}
	envelope, err := DecodeEnvelope(frame)
	if err != nil {
		return nil
	}
	state, err := envelope.GameState()
	if err != nil {
		return nil
	}
	return state
}

func (broker *Broker) Clients() int {
	broker.mu.Lock()
	defer broker.mu.Unlock()
	return len(broker.clients)
}

// Close disconnects every client. The broker stays usable.
func (broker *Broker) Close() {
	broker.mu.Lock()
	clients := broker.clients.Values()
	broker.clients = make(collections.Set[*ClientSession])
	broker.mu.Unlock()

	for _, client := range clients {
		go client.close(websocket.StatusGoingAway, "broker shutting down")
	}
}
