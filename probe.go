package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"arenarelay/protocol"
)

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "join the relay as a player and print every relayed event",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "localhost:7777", Usage: "relay TCP address"},
			&cli.StringFlag{Name: "name", Value: "probe", Usage: "player name sent in the handshake"},
			&cli.DurationFlag{Name: "duration", Value: 10 * time.Second, Usage: "how long to listen"},
		},
		Action: runProbe,
	}
}

var (
	typeColor = color.New(color.FgHiBlue)
	ackColor  = color.New(color.FgGreen, color.Bold)
)

func runProbe(ctx context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	hs, err := protocol.Marshal(protocol.Handshake{Version: protocol.Version, Name: cmd.String("name")})
	if err != nil {
		return err
	}
	if _, err := conn.Write(hs); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(cmd.Duration("duration")))

	br := bufio.NewReader(conn)
	for {
		msg, err := protocol.ReadServer(br)
		if err != nil {
			switch {
			case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, net.ErrClosed):
				return nil
			case errors.Is(err, io.EOF):
				fmt.Println("relay closed the connection")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if ack, ok := msg.(protocol.HandshakeAck); ok {
			_, _ = ackColor.Printf("joined as player %d\n", ack.ID)
			continue
		}
		_, _ = typeColor.Printf("%-13s", msg.Type())
		fmt.Printf("%+v\n", msg)
	}
}
