// Copyright (c) 2026 OpenG7. All rights reserved.

package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/metrics"
	"github.com/OpenG7/openg7-platform-sub001/pkg/uuidv7"
)

// # SSE Stream Broker

// Envelope is the JSON payload of one broadcast SSE frame.
type Envelope struct {
	EventID string  `json:"eventId"`
	Type    string  `json:"type"`
	Payload any     `json:"payload"`
	Cursor  *string `json:"cursor,omitempty"`
}

// StreamWriter is the minimal connection surface the broker writes to. The
// HTTP layer wraps a ResponseWriter/Flusher pair; tests supply fakes.
type StreamWriter interface {
	// Write appends raw frame bytes; an error marks the client dead.
	Write(p []byte) (int, error)
	// Flush pushes buffered bytes to the wire immediately.
	Flush()
}

// streamClient is one registered SSE connection.
type streamClient struct {
	id     string
	userID string
	writer StreamWriter

	// writeMu serializes frame writes: broadcast and heartbeat run on
	// different goroutines and interleaved partial frames corrupt the stream.
	writeMu sync.Mutex
}

// write sends one complete frame to the client.
func (client *streamClient) write(frame []byte) error {
	client.writeMu.Lock()
	defer client.writeMu.Unlock()

	if _, err := client.writer.Write(frame); err != nil {
		return err
	}
	client.writer.Flush()
	return nil
}

// StreamBroker manages the registry of open SSE connections, heartbeats
// them, and fans broadcast frames out to every client.
//
// The heartbeat goroutine starts lazily with the first client and stops when
// the registry empties, so an idle process carries no periodic work. Both
// transitions happen under the registry mutex, making concurrent
// register/unregister race-safe.
type StreamBroker struct {
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	clients map[string]*streamClient

	// stopHeartbeat is non-nil exactly while the heartbeat goroutine runs.
	stopHeartbeat chan struct{}
}

// NewStreamBroker creates a broker heartbeating at the given interval.
func NewStreamBroker(interval time.Duration, logger *slog.Logger) *StreamBroker {
	return &StreamBroker{
		logger:   logger,
		interval: interval,
		clients:  make(map[string]*streamClient),
	}
}

/*
Register adds a connection to the registry and ensures the heartbeat loop is
running.

Description: An initial comment frame is written immediately so proxies
commit to the streaming response and the client learns the connection is
live before the first event.

Parameters:
  - writer: StreamWriter
  - userID: string

Returns:
  - string: The client id to pass to Unregister
  - error: Initial frame write failures
*/
func (broker *StreamBroker) Register(writer StreamWriter, userID string) (string, error) {

	client := &streamClient{
		id:     uuidv7.New(),
		userID: userID,
		writer: writer,
	}

	if err := client.write([]byte(": connected\n\n")); err != nil {
		return "", fmt.Errorf("feed: stream handshake failed: %w", err)
	}

	broker.mu.Lock()
	broker.clients[client.id] = client
	if broker.stopHeartbeat == nil {
		broker.stopHeartbeat = make(chan struct{})
		go broker.heartbeatLoop(broker.stopHeartbeat)
	}
	broker.mu.Unlock()

	metrics.StreamClientConnected(1)
	broker.logger.Debug("stream_client_registered",
		slog.String("client_id", client.id),
		slog.String("user_id", userID),
	)

	return client.id, nil
}

// Unregister removes a connection; the heartbeat loop stops when the
// registry empties.
func (broker *StreamBroker) Unregister(clientID string) {
	broker.mu.Lock()
	_, found := broker.clients[clientID]
	if found {
		delete(broker.clients, clientID)
	}
	broker.stopIfEmptyLocked()
	broker.mu.Unlock()

	if found {
		metrics.StreamClientConnected(-1)
	}
}

/*
Broadcast writes an event frame to every registered client.

Description: Clients whose writes fail are treated as disconnected and
purged after the sweep; a failed write is a cleanup signal, never an error
for the caller.

Parameters:
  - envelope: Envelope
*/
func (broker *StreamBroker) Broadcast(envelope Envelope) {

	payload, err := json.Marshal(envelope)
	if err != nil {
		broker.logger.Error("stream_broadcast_encode_failed", slog.Any("error", err))
		return
	}

	frame := []byte("id: " + envelope.EventID + "\ndata: " + string(payload) + "\n\n")
	broker.sweep(frame)

	metrics.StreamBroadcast()
}

// ClientCount returns the number of registered connections.
func (broker *StreamBroker) ClientCount() int {
	broker.mu.Lock()
	defer broker.mu.Unlock()
	return len(broker.clients)
}

// heartbeatLoop writes comment keep-alives until stopped. Each loop owns its
// stop channel, so a stop/start pair during one tick cannot strand or double
// a goroutine.
func (broker *StreamBroker) heartbeatLoop(stop chan struct{}) {
	ticker := time.NewTicker(broker.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			broker.sweep([]byte(": ping\n\n"))
		case <-stop:
			return
		}
	}
}

// sweep writes one frame to every client and purges the ones whose
// connection is gone.
func (broker *StreamBroker) sweep(frame []byte) {

	// Snapshot under lock; write outside it so one slow client cannot block
	// registration.
	broker.mu.Lock()
	snapshot := make([]*streamClient, 0, len(broker.clients))
	for _, client := range broker.clients {
		snapshot = append(snapshot, client)
	}
	broker.mu.Unlock()

	var dead []string
	for _, client := range snapshot {
		if err := client.write(frame); err != nil {
			dead = append(dead, client.id)
		}
	}

	if len(dead) == 0 {
		return
	}

	purged := 0
	broker.mu.Lock()
	for _, clientID := range dead {
		if _, found := broker.clients[clientID]; found {
			delete(broker.clients, clientID)
			purged++
		}
	}
	broker.stopIfEmptyLocked()
	broker.mu.Unlock()

	metrics.StreamClientConnected(-purged)
	broker.logger.Debug("stream_clients_purged", slog.Int("count", purged))
}

// stopIfEmptyLocked halts the heartbeat goroutine when no clients remain.
// Callers must hold broker.mu.
func (broker *StreamBroker) stopIfEmptyLocked() {
	if len(broker.clients) == 0 && broker.stopHeartbeat != nil {
		close(broker.stopHeartbeat)
		broker.stopHeartbeat = nil
	}
}
