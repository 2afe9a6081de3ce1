package shellmind

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeExecuteResult simulates the client's Shell.Execute for a given
// Command, without running a real bash process, so server_test can
// drive the dispatch loop end to end over a real TCP connection.
func fakeExecuteResult(cmd Command) Result {
	switch c := cmd.(type) {
	case ShellCommand:
		return ShellResult{
			Cmd:      c,
			Stdout:   []OutputLine{{Time: 1, Text: "ok"}},
			ExitCode: 0,
			Prompt:   Prompt{Prompt: "0 root@box:/app # ", User: "root", Host: "box", Cwd: "/app", UserType: UserTypeRoot},
		}
	case FileReadCommand:
		content := "fake content"
		return FileReadResult{Cmd: c, File: c.File, Content: &content}
	case FileWriteCommand:
		written := len(c.Content)
		return FileWriteResult{Cmd: c, File: c.File, Written: &written}
	default:
		panic("unreachable")
	}
}

func TestServerHandshakeIntroAndDispatch(t *testing.T) {
	log := NewLogger("error")
	gen := &scriptedGenerator{responses: []string{`[{"kind":"shell","command":"echo again"}]`}}
	compactor, err := NewCompactor(log, "system static", "goal", 100000, NewWordCountTokenizer(), gen)
	require.NoError(t, err)

	server, err := NewServer(log, ServerConfig{Port: 0, ExitTimeout: 2 * time.Second}, compactor, NewNoopRenderer())
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go server.Serve(ctx)

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	fc := NewFrameConn(conn)

	require.NoError(t, fc.Send(SynMessage{}))
	raw, err := fc.Recv()
	require.NoError(t, err)
	ack, err := ParseControlMessage(raw)
	require.NoError(t, err)
	require.IsType(t, AckMessage{}, ack)
	require.NoError(t, fc.Send(AckMessage{}))

	expectedCommands := len(initialCommands) + 1
	for i := 0; i < expectedCommands; i++ {
		raw, err := fc.Recv()
		require.NoError(t, err)
		cmd, err := ParseCommand(raw)
		require.NoError(t, err)
		require.NoError(t, fc.Send(fakeExecuteResult(cmd)))
	}

	require.Eventually(t, func() bool {
		return compactor.HistoryLen() == expectedCommands
	}, time.Second, 10*time.Millisecond)
}

func TestServerNopClosesImmediately(t *testing.T) {
	log := NewLogger("error")
	gen := &scriptedGenerator{responses: []string{`[]`}}
	compactor, err := NewCompactor(log, "sys", "goal", 100000, NewWordCountTokenizer(), gen)
	require.NoError(t, err)

	server, err := NewServer(log, ServerConfig{Port: 0, ExitTimeout: 2 * time.Second}, compactor, NewNoopRenderer())
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go server.Serve(ctx)

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	fc := NewFrameConn(conn)
	require.NoError(t, fc.Send(NopMessage{}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = fc.Recv()
	require.Error(t, err)
}
