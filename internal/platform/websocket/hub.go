// Package websocket streams committed audit events to connected clients.
// Clients subscribe to the whole trail or to a single patient's events and
// receive each event once, in commit order.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medledger/medledger/internal/domain/auditevent"
	"github.com/medledger/medledger/internal/platform/auth"
)

// TopicAll carries every audit event.
const TopicAll = "audit"

const patientTopicPrefix = "patient:"

// PatientTopic is the topic carrying the events of a single patient.
func PatientTopic(patient string) string {
	return patientTopicPrefix + patient
}

// topicPatient returns the patient a topic is scoped to, "" for TopicAll.
func topicPatient(topic string) (string, bool) {
	if topic == TopicAll {
		return "", true
	}
	if id, ok := strings.CutPrefix(topic, patientTopicPrefix); ok && id != "" {
		return id, true
	}
	return "", false
}

// ClientMessage is an inbound message from a client.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// ServerMessage acknowledges a subscription change. Rejected lists topics
// that are unknown or that the principal may not watch.
type ServerMessage struct {
	Type     string   `json:"type"`
	Topics   []string `json:"topics"`
	Rejected []string `json:"rejected,omitempty"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is a single connection.
type Client struct {
	ID        string
	Principal string
	Topics    []string
	Send      chan []byte
	conn      Conn
}

func NewClient(principal string, conn Conn) *Client {
	return &Client{
		ID:        uuid.New().String(),
		Principal: principal,
		Topics:    []string{},
		Send:      make(chan []byte, 256),
		conn:      conn,
	}
}

// Hub tracks clients and their topic subscriptions. It implements
// auditevent.Sink; Publish never blocks on a slow client.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> set of clients
	all     map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, topic := range client.Topics {
		h.addLocked(client, topic)
	}
}

// Unregister removes the client from every topic and closes its Send
// channel. Unregistering twice is a no-op.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range client.Topics {
		h.removeLocked(client, topic)
	}
	delete(h.all, client)
	close(client.Send)
}

func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		if slices.Contains(client.Topics, topic) {
			continue
		}
		h.addLocked(client, topic)
		client.Topics = append(client.Topics, topic)
	}
}

func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		h.removeLocked(client, topic)
	}
	client.Topics = slices.DeleteFunc(client.Topics, func(t string) bool {
		return slices.Contains(topics, t)
	})
}

func (h *Hub) addLocked(client *Client, topic string) {
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*Client]struct{})
	}
	h.clients[topic][client] = struct{}{}
}

func (h *Hub) removeLocked(client *Client, topic string) {
	if subscribers, ok := h.clients[topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.clients, topic)
		}
	}
}

// Publish sends e to subscribers of TopicAll and of the event's patient.
// A client subscribed to both receives it once.
func (h *Hub) Publish(_ context.Context, e auditevent.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := make(map[*Client]struct{})
	deliver := func(topic string) {
		for client := range h.clients[topic] {
			if _, done := sent[client]; done {
				continue
			}
			sent[client] = struct{}{}
			select {
			case client.Send <- data:
			default:
				h.logger.Warn().
					Str("client_id", client.ID).
					Uint64("sequence", e.Sequence).
					Msg("audit stream client buffer full, event dropped")
			}
		}
	}
	deliver(TopicAll)
	if e.Patient != "" {
		deliver(PatientTopic(e.Patient))
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Watcher decides whether principal may watch a patient's audit events.
// An empty patient stands for the whole trail.
type Watcher interface {
	CanWatchAudit(principal, patient string) bool
}

// Handler upgrades HTTP requests to audit streams.
type Handler struct {
	hub      *Hub
	watcher  Watcher
	upgrader gorillawebsocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler binds a handler to hub. allowedOrigins follows the CORS
// setting; "*" accepts any origin.
func NewHandler(hub *Hub, watcher Watcher, allowedOrigins []string, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:     hub,
		watcher: watcher,
		logger:  logger,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/audit-events/stream", h.HandleConnect)
}

// HandleConnect upgrades the connection and subscribes it to the topics in
// the comma-separated "topics" query parameter.
func (h *Handler) HandleConnect(c echo.Context) error {
	principal := auth.UserIDFromContext(c.Request().Context())
	if principal == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing principal")
	}

	var initial []string
	if q := c.QueryParam("topics"); q != "" {
		initial = strings.Split(q, ",")
	}
	allowed, rejected := h.filter(principal, initial)
	if len(initial) > 0 && len(allowed) == 0 {
		return echo.NewHTTPError(http.StatusForbidden, "no permitted topics")
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(principal, ws)
	client.Topics = allowed
	h.hub.Register(client)
	h.logger.Info().
		Str("client_id", client.ID).
		Str("principal", principal).
		Strs("topics", allowed).
		Msg("audit stream connected")

	if ack, err := json.Marshal(ServerMessage{Type: "subscribed", Topics: allowed, Rejected: rejected}); err == nil {
		h.hub.send(client, ack)
	}

	go h.writePump(client)
	go h.readPump(client)
	return nil
}

// filter splits topics into those principal may watch and the rest.
func (h *Handler) filter(principal string, topics []string) (allowed, rejected []string) {
	allowed = []string{}
	for _, t := range topics {
		t = strings.TrimSpace(t)
		patient, ok := topicPatient(t)
		if ok && h.watcher.CanWatchAudit(principal, patient) {
			allowed = append(allowed, t)
		} else {
			rejected = append(rejected, t)
		}
	}
	return allowed, rejected
}

// ProcessMessage applies a subscribe or unsubscribe request and returns the
// acknowledgement to send back.
func (h *Handler) ProcessMessage(client *Client, msg ClientMessage) ServerMessage {
	switch msg.Action {
	case "subscribe":
		allowed, rejected := h.filter(client.Principal, msg.Topics)
		h.hub.Subscribe(client, allowed)
		return ServerMessage{Type: "subscribed", Topics: allowed, Rejected: rejected}
	case "unsubscribe":
		h.hub.Unsubscribe(client, msg.Topics)
		return ServerMessage{Type: "unsubscribed", Topics: msg.Topics}
	default:
		return ServerMessage{Type: "error", Rejected: msg.Topics}
	}
}

func (h *Handler) readPump(client *Client) {
	defer func() {
		h.hub.Unregister(client)
		client.conn.Close()
		h.logger.Info().Str("client_id", client.ID).Msg("audit stream disconnected")
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		ack := h.ProcessMessage(client, msg)
		data, err := json.Marshal(ack)
		if err != nil {
			continue
		}
		h.hub.send(client, data)
	}
}

func (h *Handler) writePump(client *Client) {
	defer client.conn.Close()

	for message := range client.Send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			return
		}
	}
}

// send queues data for a still-registered client without blocking.
func (h *Hub) send(client *Client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}
