package client_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eternalApril/updown/internal/client"
	"github.com/eternalApril/updown/internal/command"
	"github.com/eternalApril/updown/internal/config"
	"github.com/eternalApril/updown/internal/hub"
	"github.com/eternalApril/updown/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startServer(t *testing.T) string {
	t.Helper()

	log := zaptest.NewLogger(t)
	cfg := &config.Config{
		Server: config.ServerConfig{
			WSPath:       "/ws",
			WriteTimeout: time.Second,
			SendQueue:    8,
		},
	}
	h := hub.New(log, nil)
	srv := server.New(cfg, h, server.NewEngine(h, nil, nil, log), nil, log)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx) //nolint:errcheck
		ts.Close()
	})

	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *client.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() }) //nolint:errcheck
	return c
}

func TestClient_SendAndReceive(t *testing.T) {
	url := startServer(t)

	a := dial(t, url)
	cmd, err := a.ReceiveCommand()
	require.NoError(t, err)
	assert.Equal(t, command.Info{ConnectedUsers: 1}, cmd)

	b := dial(t, url)
	cmd, err = b.ReceiveCommand()
	require.NoError(t, err)
	assert.Equal(t, command.Info{ConnectedUsers: 2}, cmd)

	require.NoError(t, a.Send(command.Down{Offset: 12}))

	cmd, err = b.ReceiveCommand()
	require.NoError(t, err)
	assert.Equal(t, command.Down{Offset: 12}, cmd)
}

func TestClient_ReceiveNonRESP(t *testing.T) {
	url := startServer(t)
	c := dial(t, url)

	_, err := c.ReceiveCommand()
	require.NoError(t, err)

	// INFO from a client is ignored without a reply
	require.NoError(t, c.Send(command.Info{ConnectedUsers: 0}))
	require.NoError(t, c.SendRaw(":abc\r\n"))

	_, err = c.Receive()
	var msg *client.ServerMessage
	require.True(t, errors.As(err, &msg), "got %v", err)
	assert.Equal(t, "Failed to parse command: Invalid integer format", msg.Text)
}

func TestDial_Refused(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.Dial(ctx, "ws://127.0.0.1:1/ws")
	assert.Error(t, err)
}
