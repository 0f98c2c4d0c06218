package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/decred/slog"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"spinwheel-backend/internal/models"
	"spinwheel-backend/internal/services"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	gameEngine *services.GameEngine
	hub        *WebSocketHub
	log        slog.Logger
}

// WebSocketHub owns the client set. Only run touches clients.
type WebSocketHub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *delivery
	log        slog.Logger
}

type Client struct {
	Address string
	Conn    *websocket.Conn
	send    chan *Message
}

type Message struct {
	Type    string      `json:"type"`
	Address string      `json:"address,omitempty"`
	Data    interface{} `json:"data"`
}

// delivery is a message plus its audience: one client, every connection of
// one address, or everyone.
type delivery struct {
	client  *Client
	address string
	msg     *Message
}

func NewWebSocketHandler(gameEngine *services.GameEngine, log slog.Logger) *WebSocketHandler {
	if log == nil {
		log = slog.Disabled
	}
	hub := &WebSocketHub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *delivery, 256),
		log:        log,
	}

	go hub.run()

	return &WebSocketHandler{
		gameEngine: gameEngine,
		hub:        hub,
		log:        log,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	address := c.GetString("address")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &Client{
		Address: address,
		Conn:    conn,
		send:    make(chan *Message, sendBufferSize),
	}

	h.hub.register <- client
	go client.writePump(h.log)

	defer func() {
		h.hub.unregister <- client
		conn.Close()
	}()

	h.sendBalance(client)

	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debugf("WebSocket error for %s: %v", address, err)
			}
			break
		}

		h.handleMessage(client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(client *Client, msg *Message) {
	switch msg.Type {
	case "PING":
		h.hub.deliver(&delivery{client: client, msg: &Message{
			Type: "PONG",
			Data: gin.H{"timestamp": time.Now().Unix()},
		}})
	case "GET_BALANCE":
		h.sendBalance(client)
	}
}

func (h *WebSocketHandler) sendBalance(client *Client) {
	balance, err := h.gameEngine.Balance(context.Background(), client.Address)
	if err != nil {
		h.log.Debugf("No balance for %s: %v", client.Address, err)
		return
	}
	h.hub.deliver(&delivery{client: client, msg: &Message{Type: "BALANCE_UPDATE", Data: balance}})
}

// BroadcastSpinResult announces a settled spin to everyone and refreshes the
// player's balance on their own connections.
func (h *WebSocketHandler) BroadcastSpinResult(result *models.SpinResult) {
	h.hub.deliver(&delivery{msg: &Message{Type: "SPIN_RESULT", Data: result}})

	go func(player string) {
		balance, err := h.gameEngine.Balance(context.Background(), player)
		if err != nil {
			h.log.Debugf("Balance refresh for %s failed: %v", player, err)
			return
		}
		h.hub.deliver(&delivery{address: player, msg: &Message{
			Type:    "BALANCE_UPDATE",
			Address: player,
			Data:    balance,
		}})
	}(result.Player)
}

func (h *WebSocketHandler) BroadcastPoolUpdate(pool models.PoolInfo) {
	h.hub.deliver(&delivery{msg: &Message{Type: "POOL_UPDATE", Data: pool}})
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			hub.clients[client] = true
			hub.log.Debugf("Client registered: %s", client.Address)

		case client := <-hub.unregister:
			hub.remove(client)

		case d := <-hub.broadcast:
			hub.dispatch(d)
		}
	}
}

func (hub *WebSocketHub) remove(client *Client) {
	if _, ok := hub.clients[client]; ok {
		delete(hub.clients, client)
		close(client.send)
		hub.log.Debugf("Client unregistered: %s", client.Address)
	}
}

func (hub *WebSocketHub) dispatch(d *delivery) {
	for client := range hub.clients {
		if d.client != nil && client != d.client {
			continue
		}
		if d.address != "" && client.Address != d.address {
			continue
		}
		select {
		case client.send <- d.msg:
		default:
			// Send buffer full.
			hub.log.Warnf("Dropping slow client %s", client.Address)
			hub.remove(client)
			client.Conn.Close()
		}
	}
}

// deliver queues d without blocking the caller. Settlement paths call this,
// so a full queue drops the event.
func (hub *WebSocketHub) deliver(d *delivery) {
	select {
	case hub.broadcast <- d:
	default:
		hub.log.Warnf("Broadcast queue full, dropping %s", d.msg.Type)
	}
}

func (c *Client) writePump(log slog.Logger) {
	for msg := range c.send {
		c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteJSON(msg); err != nil {
			log.Debugf("Write to %s failed: %v", c.Address, err)
			c.Conn.Close()
			return
		}
	}
}
