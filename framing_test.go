package shellmind

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func pipeFrameConns(t *testing.T) (*FrameConn, *FrameConn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return NewFrameConn(a), NewFrameConn(b)
}

func TestFrameConnRoundTrip(t *testing.T) {
	client, server := pipeFrameConns(t)

	type payload struct {
		A int    `json:"a"`
		B string `json:"b"`
	}
	want := payload{A: 42, B: "hello"}

	errCh := make(chan error, 1)
	go func() { errCh <- client.Send(want) }()

	data, err := server.Recv()
	require.NoError(t, err)
	require.NoError(t, <-errCh)

	var got payload
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, want, got)
}

// TestFrameConnMultipleFramesOneSegment verifies that two frames written
// back to back (as a single TCP segment would deliver them) are parsed
// as two distinct messages, not one.
func TestFrameConnMultipleFramesOneSegment(t *testing.T) {
	client, server := pipeFrameConns(t)

	go func() {
		_, _ = client.Conn().Write([]byte("{\"n\":1}\x00{\"n\":2}\x00"))
	}()

	first, err := server.Recv()
	require.NoError(t, err)
	second, err := server.Recv()
	require.NoError(t, err)

	require.JSONEq(t, `{"n":1}`, string(first))
	require.JSONEq(t, `{"n":2}`, string(second))
}

func TestFrameConnClosedConnection(t *testing.T) {
	client, server := pipeFrameConns(t)
	require.NoError(t, client.Conn().Close())

	_, err := server.Recv()
	require.Error(t, err)
	var closedErr *ErrConnectionClosed
	require.ErrorAs(t, err, &closedErr)
}

// TestFrameConnRoundTripRapid is the §8 property #1: for every
// JSON-serializable value not containing a literal NUL, recv(send(v))
// reproduces the same structure.
func TestFrameConnRoundTripRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()
		fc, fs := NewFrameConn(client), NewFrameConn(server)

		n := rapid.IntRange(0, 50).Draw(t, "n")
		text := rapid.StringN(0, 40, -1).Draw(t, "text")
		want := map[string]any{"n": n, "text": text}

		errCh := make(chan error, 1)
		go func() { errCh <- fc.Send(want) }()

		data, err := fs.Recv()
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		if sendErr := <-errCh; sendErr != nil {
			t.Fatalf("send: %v", sendErr)
		}

		var got map[string]any
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got["text"] != want["text"] {
			t.Fatalf("text mismatch: got %v want %v", got["text"], want["text"])
		}
		if got["n"] != float64(n) {
			t.Fatalf("n mismatch: got %v want %v", got["n"], n)
		}
	})
}
