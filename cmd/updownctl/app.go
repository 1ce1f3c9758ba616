package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/eternalApril/updown/internal/client"
	"github.com/eternalApril/updown/internal/command"
	"github.com/eternalApril/updown/internal/resplite"
	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v2"
)

// App creates the CLI application
func App() *cli.App {
	return &cli.App{
		Name:  "updownctl",
		Usage: "send and watch up/down signals on an updown server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "websocket URL of the server",
				EnvVars: []string{"UPDOWN_SERVER"},
				Value:   "ws://localhost:3000/ws",
			},
		},
		Commands: []*cli.Command{
			offsetCommand("up", "broadcast an UP signal", func(n int64) command.Command { return command.Up{Offset: n} }),
			offsetCommand("down", "broadcast a DOWN signal", func(n int64) command.Command { return command.Down{Offset: n} }),
			rawCommand(),
			watchCommand(),
		},
	}
}

func offsetCommand(name, usage string, build func(int64) command.Command) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<offset>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit(fmt.Sprintf("%s expects exactly one offset", name), 2)
			}
			offset, err := strconv.ParseInt(c.Args().First(), 10, 64)
			if err != nil || offset < 0 {
				return cli.Exit(fmt.Sprintf("invalid offset %q: must be a non-negative integer", c.Args().First()), 2)
			}

			conn, err := client.Dial(c.Context, c.String("server"))
			if err != nil {
				return err
			}
			defer conn.Close() //nolint:errcheck

			return conn.Send(build(offset))
		},
	}
}

// rawCommand sends a payload as-is, with \r\n escapes expanded, and prints the server's reply if any
func rawCommand() *cli.Command {
	return &cli.Command{
		Name:      "raw",
		Usage:     "send an arbitrary RESP-lite payload, e.g. '*2\\r\\n+up\\r\\n:1\\r\\n'",
		ArgsUsage: "<payload>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("raw expects exactly one payload", 2)
			}
			payload := strings.NewReplacer(`\r`, "\r", `\n`, "\n").Replace(c.Args().First())

			conn, err := client.Dial(c.Context, c.String("server"))
			if err != nil {
				return err
			}
			defer conn.Close() //nolint:errcheck

			return conn.SendRaw(payload)
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "print every message the server broadcasts",
		Action: func(c *cli.Context) error {
			conn, err := client.Dial(c.Context, c.String("server"))
			if err != nil {
				return err
			}
			defer conn.Close() //nolint:errcheck

			return watch(c.Context, conn, c.App.Writer)
		},
	}
}

// watch prints messages until the connection closes or ctx is done
func watch(ctx context.Context, conn *client.Client, w io.Writer) error {
	go func() {
		<-ctx.Done()
		conn.Close() //nolint:errcheck
	}()

	for {
		v, err := conn.Receive()
		if err != nil {
			var msg *client.ServerMessage
			if errors.As(err, &msg) {
				fmt.Fprintln(w, msg.Text) //nolint:errcheck
				continue
			}
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		fmt.Fprintln(w, describe(v)) //nolint:errcheck
	}
}

func describe(v resplite.Value) string {
	cmd, err := command.Decode(v)
	if err != nil {
		encoded, _ := resplite.Encode(v) //nolint:errcheck
		return strconv.Quote(encoded)
	}

	switch c := cmd.(type) {
	case command.Down:
		return fmt.Sprintf("DOWN %d", c.Offset)
	case command.Up:
		return fmt.Sprintf("UP %d", c.Offset)
	case command.Info:
		return fmt.Sprintf("INFO %d connected", c.ConnectedUsers)
	}
	return string(cmd.Name())
}
