package shellmind

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// Server is the C5 listener: it accepts exactly one connection at a
// time, runs the SYN/ACK/FIN/NOP handshake, plays the one-shot intro
// batch, then loops the compactor's generation against the connected
// shell (§4.5, grounded on server/server.py's Server).
type Server struct {
	log           *logrus.Logger
	listener      net.Listener
	compactor     *Compactor
	renderer      Renderer
	exitTimeout   time.Duration
	introSeedPath string
	initialized   bool
	lastPrompt    string
}

// NewServer binds 127.0.0.1:port and returns a Server ready to Serve.
func NewServer(log *logrus.Logger, cfg ServerConfig, compactor *Compactor, renderer Renderer) (*Server, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	log.WithField("addr", addr).Info("listening")
	return &Server{
		log:           log,
		listener:      listener,
		compactor:     compactor,
		renderer:      renderer,
		exitTimeout:   cfg.ExitTimeout,
		introSeedPath: cfg.IntroSeedPath,
	}, nil
}

// Close releases the listening socket.
func (s *Server) Close() error { return s.listener.Close() }

// Addr returns the address the server is listening on, chiefly useful
// in tests that bind an ephemeral port (cfg.Port == 0).
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve accepts connections one at a time, forever, returning only on
// a fatal error (§7): context exhaustion or a hard listener failure.
func (s *Server) Serve(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		s.log.WithField("peer", conn.RemoteAddr()).Info("connection accepted")
		if err := s.handleConnection(ctx, conn); err != nil {
			var exhausted *ErrContextExhausted
			if errors.As(err, &exhausted) {
				return err
			}
			s.log.WithError(err).Warn("connection ended")
		}
		s.log.Info("connection closed")
	}
}

// handleConnection runs the handshake, the intro batch on first
// contact, and then the dispatch loop until the connection drops or a
// fatal error occurs.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) error {
	defer conn.Close()
	fc := NewFrameConn(conn)

	if err := conn.SetDeadline(time.Now().Add(s.exitTimeout + time.Second)); err != nil {
		return err
	}
	if err := s.handshake(fc); err != nil {
		return err
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return err
	}

	if !s.initialized {
		cmds, comment := introBatch(s.introSeedPath)
		s.renderer.SetSuspended(true)
		err := s.dispatchBatch(fc, cmds, comment)
		s.renderer.SetSuspended(false)
		if err != nil {
			return err
		}
		s.initialized = true
	}

	for {
		cmds, err := s.compactor.GetCommands(ctx)
		if err != nil {
			if errors.Is(err, ErrValidation) {
				s.log.WithError(err).Warn("generator output failed validation, skipping turn")
				continue
			}
			return err
		}
		if err := s.dispatchBatch(fc, cmds, ""); err != nil {
			return err
		}
	}
}

// handshake implements §4.5.1: a NOP closes immediately, a SYN is
// acknowledged and must be met with a returning ACK.
func (s *Server) handshake(fc *FrameConn) error {
	return ServerHandshake(fc)
}

// ServerHandshake runs the server side of the §4.5.1 handshake on an
// already-accepted connection: a NOP closes immediately, a SYN is
// acknowledged and must be met with a returning ACK. Exposed standalone
// so bridges other than the full Server (e.g. the MCP bridge) can reuse
// it without depending on a Compactor.
func ServerHandshake(fc *FrameConn) error {
	raw, err := fc.Recv()
	if err != nil {
		return err
	}
	msg, err := ParseControlMessage(raw)
	if err != nil {
		return err
	}
	switch msg.(type) {
	case NopMessage:
		return &ErrConnectionClosed{}
	case SynMessage:
		if err := fc.Send(AckMessage{}); err != nil {
			return err
		}
		raw, err := fc.Recv()
		if err != nil {
			return err
		}
		ack, err := ParseControlMessage(raw)
		if err != nil {
			return err
		}
		if _, ok := ack.(AckMessage); !ok {
			return fmt.Errorf("%w: expected ack, got %T", ErrValidation, ack)
		}
		return nil
	default:
		return fmt.Errorf("%w: expected syn or nop, got %T", ErrValidation, msg)
	}
}

// AcceptOneAgent listens on 127.0.0.1:port, accepts a single
// shellmind-agent connection, runs the server-side handshake, and
// returns the framed connection ready for command/result round-trips.
// Used by standalone bridges (e.g. cmd/shellmind-mcp-server) that want
// the wire protocol without a Compactor-driven dispatch loop.
func AcceptOneAgent(port int) (*FrameConn, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	defer listener.Close()

	conn, err := listener.Accept()
	if err != nil {
		return nil, fmt.Errorf("accept: %w", err)
	}
	fc := NewFrameConn(conn)
	if err := conn.SetDeadline(time.Now().Add(DefaultExitTimeout + time.Second)); err != nil {
		return nil, err
	}
	if err := ServerHandshake(fc); err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		conn.Close()
		return nil, err
	}
	return fc, nil
}

// dispatchBatch sends each command and waits for its result in lock
// step, appending the whole batch to history only once every command
// has round-tripped (§4.5.3, §8 property #6).
func (s *Server) dispatchBatch(fc *FrameConn, cmds []Command, comment string) error {
	results := make([]Result, 0, len(cmds))
	for i, cmd := range cmds {
		if err := fc.Send(cmd); err != nil {
			return err
		}

		raw, err := fc.Recv()
		if err != nil {
			return err
		}
		result, err := ParseResult(raw)
		if err != nil {
			return fmt.Errorf("%w: decode result: %v", ErrValidation, err)
		}

		turnComment := comment
		if comment != "" {
			turnComment = fmt.Sprintf("%s (%d/%d)", comment, i+1, len(cmds))
		}
		s.renderer.RenderPrompt(s.lastPrompt)
		s.renderer.RenderResult(result, turnComment)
		if sr, ok := result.(ShellResult); ok {
			s.lastPrompt = sr.Prompt.Prompt
		}

		results = append(results, result)
	}
	s.compactor.AppendResults(results)
	return nil
}
