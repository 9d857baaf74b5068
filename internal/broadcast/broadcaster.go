package broadcast

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/tickerpulse/internal/metrics"
)

const (
	commandTimeout   = 5 * time.Second
	stopTimeout      = 10 * time.Second
	commandQueueSize = 256
)

type symbolClients map[*websocket.Conn]*clientWriter

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	symbol       string
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	symbol     string
	connection *websocket.Conn
}

type broadcastCmd struct {
	baseHubCmd
	symbol  string
	payload []byte
}

type clientCountCmd struct {
	baseHubCmd
	symbol       string
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub fans aggregate updates out to WebSocket clients grouped by symbol.
// All registry state is owned by the run goroutine; callers talk to it
// through commands, so no locking is needed anywhere.
type Hub struct {
	cmdCh               chan hubCmd
	clock               clockwork.Clock
	clients             map[string]symbolClients
	done                chan struct{}
	stopTimeout         time.Duration
	maxClientsPerSymbol int
}

// NewHub creates the hub and starts its actor goroutine.
// maxClientsPerSymbol bounds connections per symbol so a single hot ticker
// cannot exhaust the instance.
func NewHub(clock clockwork.Clock, maxClientsPerSymbol int) *Hub {
	h := &Hub{
		cmdCh:               make(chan hubCmd, commandQueueSize),
		clock:               clock,
		clients:             make(map[string]symbolClients),
		done:                make(chan struct{}),
		stopTimeout:         stopTimeout,
		maxClientsPerSymbol: maxClientsPerSymbol,
	}
	go h.run()
	return h
}

// Register adds a client to a symbol's fanout group. Returns an error only
// when the symbol is at its client limit; the connection is closed in that
// case.
func (h *Hub) Register(symbol string, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- registerCmd{symbol: symbol, connection: conn, errorChannel: errCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a client from a symbol's fanout group.
func (h *Hub) Unregister(symbol string, conn *websocket.Conn) {
	h.cmdCh <- unregisterCmd{symbol: symbol, connection: conn}
}

// Broadcast queues a payload for every client watching the symbol. Fire and
// forget: symbols nobody watches are a no-op.
func (h *Hub) Broadcast(symbol string, payload []byte) {
	select {
	case h.cmdCh <- broadcastCmd{symbol: symbol, payload: payload}:
	default:
		// Queue full means the hub is far behind; dropping one update is
		// safe because the next refresh re-publishes the current state.
		slog.Warn("Hub command queue full, dropping broadcast", "symbol", symbol)
	}
}

// ClientCount returns the number of connected clients for a symbol, or -1 if
// the command times out.
func (h *Hub) ClientCount(symbol string) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- clientCountCmd{symbol: symbol, replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop shuts the hub down, closing all client connections. Blocks until the
// actor goroutine exits or the stop timeout is reached.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timeout := h.clock.NewTimer(h.stopTimeout)
	defer timeout.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Hub stop timeout exceeded, forcing exit", "timeout", h.stopTimeout)
		close(h.done)
	}
}

func (h *Hub) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			h.closeAllClients("hub panic")
		}
	}()
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case unregisterCmd:
			h.handleUnregister(c)
		case broadcastCmd:
			h.handleBroadcast(c)
		case clientCountCmd:
			c.replyChannel <- len(h.clients[c.symbol])
		case stopCmd:
			h.handleStop()
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	clients, exists := h.clients[c.symbol]
	if !exists {
		clients = make(symbolClients)
		h.clients[c.symbol] = clients
	}

	if len(clients) >= h.maxClientsPerSymbol {
		slog.Warn("Rejecting client: max clients per symbol reached",
			"symbol", c.symbol,
			"max_clients", h.maxClientsPerSymbol,
		)
		c.connection.Close()
		c.errorChannel <- fmt.Errorf("max clients per symbol (%d) reached", h.maxClientsPerSymbol)
		return
	}

	clients[c.connection] = newClientWriter(c.connection, h.clock)

	metrics.HubSymbolsActive.Set(float64(len(h.clients)))
	metrics.HubClientsConnected.Inc()

	slog.Debug("Client registered", "symbol", c.symbol, "total_clients", len(clients))
	c.errorChannel <- nil
}

func (h *Hub) handleUnregister(c unregisterCmd) {
	clients, exists := h.clients[c.symbol]
	if !exists {
		return
	}

	cw, exists := clients[c.connection]
	if !exists {
		return
	}

	cw.stop()
	delete(clients, c.connection)
	metrics.HubClientsConnected.Dec()

	if len(clients) == 0 {
		delete(h.clients, c.symbol)
		metrics.HubSymbolsActive.Set(float64(len(h.clients)))
		slog.Debug("Last client disconnected", "symbol", c.symbol)
	} else {
		slog.Debug("Client unregistered", "symbol", c.symbol, "remaining_clients", len(clients))
	}
}

func (h *Hub) handleBroadcast(c broadcastCmd) {
	clients := h.clients[c.symbol]
	if len(clients) == 0 {
		return
	}

	var slow []*websocket.Conn
	for conn, writer := range clients {
		select {
		case writer.sendChannel <- c.payload:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow client", "symbol", c.symbol)
		metrics.HubSlowClientsEvicted.Inc()
		h.handleUnregister(unregisterCmd{symbol: c.symbol, connection: conn})
	}
}

func (h *Hub) handleStop() {
	totalClients := 0
	for _, clients := range h.clients {
		totalClients += len(clients)
	}

	slog.Info("Hub shutting down", "symbols", len(h.clients), "total_clients", totalClients)
	h.closeAllClients("Server shutting down")
	slog.Info("Hub shutdown complete", "disconnected_clients", totalClients)
}

// closeAllClients closes every client connection with the given reason.
// Used during panic recovery and graceful shutdown.
func (h *Hub) closeAllClients(reason string) {
	for symbol, clients := range h.clients {
		for _, cw := range clients {
			cw.stopGraceful(reason)
		}
		metrics.HubClientsConnected.Sub(float64(len(clients)))
		delete(h.clients, symbol)
	}
	metrics.HubSymbolsActive.Set(0)
}
