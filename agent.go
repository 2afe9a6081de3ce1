package shellmind

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// Agent is the client side of the connection: it dials the server,
// completes the handshake, then executes whatever Commands arrive
// against its Shell until the connection drops, reconnecting
// thereafter (§4.5, grounded on client/client.py's Client).
type Agent struct {
	log      *logrus.Logger
	cfg      ClientConfig
	shell    *Shell
	renderer Renderer
}

// NewAgent wraps shell with the connection state machine described by
// cfg.
func NewAgent(log *logrus.Logger, cfg ClientConfig, shell *Shell, renderer Renderer) *Agent {
	return &Agent{log: log, cfg: cfg, shell: shell, renderer: renderer}
}

// Run loops handleConnection forever, sleeping cfg.ReconnectDelay
// between attempts, until ctx is canceled (§4.5.4).
func (a *Agent) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := a.handleConnection(ctx); err != nil {
			a.log.WithError(err).Warn("connection closed")
		}
		a.log.WithField("delay", a.cfg.ReconnectDelay).Info("waiting before reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.cfg.ReconnectDelay):
		}
	}
}

// handleConnection dials the server, runs the handshake, then serves
// commands until the connection ends.
func (a *Agent) handleConnection(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", a.cfg.Host, a.cfg.Port)
	a.log.WithField("addr", addr).Info("connecting")
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	fc := NewFrameConn(conn)

	if err := a.handshake(conn, fc); err != nil {
		return err
	}
	a.log.Info("connected to server")

	for {
		raw, err := fc.Recv()
		if err != nil {
			return err
		}
		isFin, cmd, err := parseServerMessage(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if isFin {
			a.log.Warn("received fin from server")
			return nil
		}

		result := a.shell.Execute(cmd)
		a.renderer.RenderResult(result, "")
		if err := fc.Send(result); err != nil {
			return err
		}
	}
}

// handshake performs the client side of §4.5.1: Syn, expect Ack, Ack.
func (a *Agent) handshake(conn net.Conn, fc *FrameConn) error {
	if err := conn.SetDeadline(time.Now().Add(time.Second)); err != nil {
		return err
	}
	if err := fc.Send(SynMessage{}); err != nil {
		return err
	}
	raw, err := fc.Recv()
	if err != nil {
		return err
	}
	msg, err := ParseControlMessage(raw)
	if err != nil {
		return err
	}
	switch msg.(type) {
	case FinMessage:
		return &ErrConnectionClosed{}
	case AckMessage:
		// expected
	default:
		return fmt.Errorf("%w: expected ack, got %T", ErrValidation, msg)
	}
	if err := fc.Send(AckMessage{}); err != nil {
		return err
	}
	return conn.SetDeadline(time.Time{})
}

// parseServerMessage decodes one server-to-client frame, which is
// either a FinMessage or a Command (the original source's
// AnyServerRuntimeMessage union).
func parseServerMessage(data []byte) (isFin bool, cmd Command, err error) {
	var tag struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return false, nil, fmt.Errorf("decode server message envelope: %w", err)
	}
	if tag.Kind == "fin" {
		return true, nil, nil
	}
	cmd, err = ParseCommand(data)
	return false, cmd, err
}
