package shellmind

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlattenShellResult(t *testing.T) {
	result := ShellResult{
		Cmd:      ShellCommand{Command: "echo hi"},
		Stdout:   []OutputLine{{Time: 2, Text: "hi"}},
		Stderr:   nil,
		ExitCode: 0,
		Prompt:   Prompt{Prompt: "0 root@box:/app # "},
	}
	turns := flattenResult(result)
	require.Equal(t, "assistant", turns[0].Role)

	var cmd map[string]any
	require.NoError(t, json.Unmarshal([]byte(turns[0].Content), &cmd))
	require.Equal(t, "shell", cmd["kind"])
	require.Equal(t, "echo hi", cmd["command"])

	require.Equal(t, "user", turns[1].Role)
	var simplified map[string]any
	require.NoError(t, json.Unmarshal([]byte(turns[1].Content), &simplified))
	require.Equal(t, "hi\n", simplified["stdout"])
	require.NotContains(t, simplified, "stderr")
}

func TestJoinOutputLinesSortsByTimestamp(t *testing.T) {
	lines := []OutputLine{
		{Time: 2, Text: "second"},
		{Time: 1, Text: "first"},
	}
	require.Equal(t, "first\nsecond\n", joinOutputLines(lines))
}

func TestFlattenFileWriteEchoesContent(t *testing.T) {
	written := 5
	result := FileWriteResult{
		Cmd:     FileWriteCommand{File: "/tmp/x", Content: "hello"},
		File:    "/tmp/x",
		Written: &written,
	}
	turns := flattenResult(result)
	var simplified map[string]any
	require.NoError(t, json.Unmarshal([]byte(turns[1].Content), &simplified))
	require.Equal(t, "hello", simplified["content"])
	require.Equal(t, float64(5), simplified["written"])
}
