package shellmind

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandRoundTrip(t *testing.T) {
	cases := []Command{
		ShellCommand{Command: "echo hi", Comment: "greet"},
		FileReadCommand{File: "/tmp/x"},
		FileWriteCommand{File: "/tmp/x", Content: "hello"},
	}
	for _, want := range cases {
		data, err := json.Marshal(want)
		require.NoError(t, err)

		got, err := ParseCommand(data)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestParseCommandUnknownKind(t *testing.T) {
	_, err := ParseCommand([]byte(`{"kind":"launch_missiles"}`))
	require.ErrorIs(t, err, ErrValidation)
}

func TestParseCommandsList(t *testing.T) {
	data := []byte(`[
		{"kind":"shell","command":"ls -la"},
		{"kind":"file_write","file":"/app/x","content":"y"},
		{"kind":"file_read","file":"/app/x"}
	]`)
	cmds, err := ParseCommands(data)
	require.NoError(t, err)
	require.Len(t, cmds, 3)
	require.Equal(t, ShellCommand{Command: "ls -la"}, cmds[0])
	require.Equal(t, FileWriteCommand{File: "/app/x", Content: "y"}, cmds[1])
	require.Equal(t, FileReadCommand{File: "/app/x"}, cmds[2])
}
