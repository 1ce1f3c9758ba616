// Package client speaks the RESP-lite command protocol to an updown server over websocket.
package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eternalApril/updown/internal/command"
	"github.com/eternalApril/updown/internal/resplite"
	"github.com/gorilla/websocket"
)

// ServerMessage is a text frame from the server that is not RESP-lite,
// such as a parse failure report
type ServerMessage struct {
	Text string
}

func (m *ServerMessage) Error() string {
	return "server: " + m.Text
}

// Client is a websocket connection to the server.
// Send and Receive may be used from different goroutines, but each from one at a time
type Client struct {
	conn *websocket.Conn
}

// Dial connects to a websocket URL such as ws://localhost:3000/ws
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

// Send encodes cmd and writes it as a text frame
func (c *Client) Send(cmd command.Command) error {
	payload, err := command.Encode(cmd)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(payload))
}

// SendRaw writes payload as a text frame without validating it
func (c *Client) SendRaw(payload string) error {
	return c.conn.WriteMessage(websocket.TextMessage, []byte(payload))
}

// Receive reads the next frame and parses it.
// A frame that does not parse is returned as a *ServerMessage error
func (c *Client) Receive() (resplite.Value, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return resplite.Value{}, err
	}

	v, err := resplite.Parse(string(data))
	if err != nil {
		return resplite.Value{}, &ServerMessage{Text: string(data)}
	}
	return v, nil
}

// ReceiveCommand reads frames until one decodes as a command
func (c *Client) ReceiveCommand() (command.Command, error) {
	for {
		v, err := c.Receive()
		if err != nil {
			return nil, err
		}
		cmd, err := command.Decode(v)
		if err != nil {
			continue
		}
		return cmd, nil
	}
}

// Close sends a normal close frame and closes the connection
func (c *Client) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteMessage(websocket.CloseMessage, msg) //nolint:errcheck
	return c.conn.Close()
}
