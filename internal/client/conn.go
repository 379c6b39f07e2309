package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/spigell/panel-interview/internal/gateway"
	"github.com/spigell/panel-interview/internal/interview"
)

// Message is any message the gateway sends over /ws.
type Message struct {
	Type          string             `json:"type"`
	SessionID     string             `json:"session_id"`
	Agent         string             `json:"agent"`
	AgentIndex    int                `json:"agent_index"`
	QuestionIndex int                `json:"question_index"`
	Text          string             `json:"text"`
	Error         string             `json:"error"`
	Code          string             `json:"code"`
	Session       *interview.Session `json:"session"`
}

// RemoteError is an error message received from the gateway.
type RemoteError struct {
	SessionID string
	Code      string
	Message   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("gateway error (%s): %s", e.Code, e.Message)
}

// Conn is a WebSocket connection to the gateway.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// Dial connects to the /ws endpoint of the gateway at serverURL. A non-empty
// sid is sent as the session cookie.
func Dial(ctx context.Context, serverURL, sid string) (*Conn, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path += "/ws"

	header := http.Header{}
	if sid != "" {
		header.Set("Cookie", (&http.Cookie{Name: gateway.DefaultCookieName, Value: sid}).String())
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	return &Conn{ws: ws}, nil
}

func (c *Conn) Send(msg gateway.Inbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// Receive blocks until the next message arrives.
func (c *Conn) Receive() (Message, error) {
	var m Message
	if err := c.ws.ReadJSON(&m); err != nil {
		return Message{}, fmt.Errorf("receive: %w", err)
	}
	return m, nil
}

// Close sends a normal close frame and closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.mu.Unlock()
	return c.ws.Close()
}
