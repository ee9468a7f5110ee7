package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/challenge-escrow/pkg/contracts/events"
)

const writeWait = 5 * time.Second

// client serializa as escritas numa conexão (gorilla aceita um writer por vez).
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// Hub gerencia conexões WebSocket e assinaturas por tópico
// ("challenge:<id>" ou "user:<id>").
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu   sync.RWMutex
	subs map[string]map[*client]struct{}
}

// NewHub cria o Hub com a política de origem informada.
func NewHub(allowOrigin func(r *http.Request) bool, log *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS atende uma conexão até o cliente desconectar.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	defer func() {
		h.drop(c)
		_ = conn.Close()
	}()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if topic := msg.topic(); topic != "" {
				h.subscribe(topic, c)
				h.reply(c, map[string]string{"type": "subscribed", "topic": topic})
			}
		case "unsubscribe":
			h.unsubscribe(msg.topic(), c)
		case "ping":
			h.reply(c, map[string]string{"type": "pong"})
		}
	}
}

func (h *Hub) subscribe(topic string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[topic]; !ok {
		h.subs[topic] = make(map[*client]struct{})
	}
	h.subs[topic][c] = struct{}{}
}

func (h *Hub) unsubscribe(topic string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[topic]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, topic)
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, topic)
		}
	}
}

func (h *Hub) reply(c *client, v any) {
	b, _ := json.Marshal(v)
	_ = c.write(websocket.TextMessage, b)
}

// Subscribers retorna quantas conexões assinam o tópico.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

// Broadcast envia o evento aos inscritos no challenge e ao usuário ator.
// Retorna quantas entregas foram feitas.
func (h *Hub) Broadcast(ev events.ChallengeEvent) int {
	var topics []string
	if ev.ChallengeID != "" {
		topics = append(topics, challengeTopic(ev.ChallengeID))
	}
	if ev.UserID != "" {
		topics = append(topics, userTopic(ev.UserID))
	}

	targets := map[*client]struct{}{}
	h.mu.RLock()
	for _, t := range topics {
		for c := range h.subs[t] {
			targets[c] = struct{}{}
		}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return 0
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return 0
	}
	sent := 0
	for c := range targets {
		if err := c.write(websocket.TextMessage, b); err != nil {
			h.log.Debug("ws write failed", zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}
