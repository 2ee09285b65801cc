package ws

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/websocket"
)

type Handler struct {
	hub *Hub
	// rutOf extracts the authenticated borrower from the request context.
	rutOf func(c *gin.Context) string
}

func NewHandler(hub *Hub, rutOf func(c *gin.Context) string) *Handler {
	return &Handler{hub: hub, rutOf: rutOf}
}

type clientMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// HandleWebSocket subscribes the caller to their own payment feed on
// connect. Clients may also send {"action":"ping"} to get a pong.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	rut := h.rutOf(c)
	if rut == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		client := NewClient(conn)
		h.hub.Subscribe(BorrowerChannel(rut), client)
		go h.writer(client)
		h.reader(client, rut)
	}).ServeHTTP(c.Writer, c.Request)
}

func (h *Handler) reader(client *Client, rut string) {
	defer func() {
		h.hub.UnsubscribeAll(client)
		client.close()
	}()

	for {
		var raw string
		if err := websocket.Message.Receive(client.conn, &raw); err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(msg.Action)) {
		case "ping":
			client.send([]byte(`{"event":"pong"}`))
		case "subscribe":
			// only the caller's own feed exists
			if strings.ToLower(strings.TrimSpace(msg.Channel)) == "borrower:payments" {
				h.hub.Subscribe(BorrowerChannel(rut), client)
			}
		}
	}
}

func (h *Handler) writer(client *Client) {
	for payload := range client.out {
		if err := websocket.Message.Send(client.conn, string(payload)); err != nil {
			return
		}
	}
}
