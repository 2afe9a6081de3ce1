package shellmind

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testShell(t *testing.T) *Shell {
	t.Helper()
	return testShellWithTimeout(t, 5*time.Second)
}

func testShellWithTimeout(t *testing.T, exitTimeout time.Duration) *Shell {
	t.Helper()
	if _, err := os.Stat("/bin/bash"); err != nil {
		t.Skip("/bin/bash not available")
	}
	log := NewLogger("debug")
	s, err := NewShell(log, DefaultPS1, exitTimeout, 1*time.Second)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestShellExecuteSimpleCommand(t *testing.T) {
	s := testShell(t)
	result := s.Execute(ShellCommand{Command: "echo hello"})
	shellResult, ok := result.(ShellResult)
	require.True(t, ok)
	require.Equal(t, 0, shellResult.ExitCode)
	require.Equal(t, UserTypeRoot, shellResult.Prompt.UserType)

	var text string
	for _, line := range shellResult.Stdout {
		text += line.Text
	}
	require.Contains(t, text, "hello")
}

func TestShellExecuteNonZeroExit(t *testing.T) {
	s := testShell(t)
	result := s.Execute(ShellCommand{Command: "exit 7"})
	shellResult := result.(ShellResult)
	require.Equal(t, 7, shellResult.ExitCode)
}

func TestShellExecuteRejectsSyntaxError(t *testing.T) {
	s := testShell(t)
	result := s.Execute(ShellCommand{Command: "echo 'unterminated"})
	shellResult := result.(ShellResult)
	require.NotEqual(t, 0, shellResult.ExitCode)
	require.NotEmpty(t, shellResult.Stderr)
}

func TestShellExecuteTimesOut(t *testing.T) {
	s := testShellWithTimeout(t, 1*time.Second)
	result := s.Execute(ShellCommand{Command: "sleep 30"})
	shellResult := result.(ShellResult)
	require.Equal(t, -2, shellResult.ExitCode)

	var stderrText string
	for _, line := range shellResult.Stderr {
		stderrText += line.Text
	}
	require.Contains(t, stderrText, "Command timed out")

	// The shell must still be usable afterwards.
	next := s.Execute(ShellCommand{Command: "echo ok"})
	nextResult := next.(ShellResult)
	require.Equal(t, 0, nextResult.ExitCode)
}

func TestShellExecuteRejectsInteractiveCommand(t *testing.T) {
	s := testShell(t)
	result := s.Execute(ShellCommand{Command: "vim /etc/hosts"})
	shellResult := result.(ShellResult)
	require.Equal(t, -3, shellResult.ExitCode)

	var stderrText string
	for _, line := range shellResult.Stderr {
		stderrText += line.Text
	}
	require.Contains(t, stderrText, "Not a terminal: vim")
}

func TestShellFileReadWriteRoundTrip(t *testing.T) {
	s := testShell(t)
	path := t.TempDir() + "/greeting.txt"

	writeResult := s.Execute(FileWriteCommand{File: path, Content: "hi there"})
	wr := writeResult.(FileWriteResult)
	require.Nil(t, wr.Error)
	require.NotNil(t, wr.Written)
	require.Equal(t, len("hi there"), *wr.Written)

	readResult := s.Execute(FileReadCommand{File: path})
	rr := readResult.(FileReadResult)
	require.Nil(t, rr.Error)
	require.NotNil(t, rr.Content)
	require.Equal(t, "hi there", *rr.Content)
}

func TestShellFileReadMissing(t *testing.T) {
	s := testShell(t)
	result := s.Execute(FileReadCommand{File: "/no/such/file"})
	rr := result.(FileReadResult)
	require.NotNil(t, rr.Error)
	require.Nil(t, rr.Content)
}

func TestShellPersistsCwdAcrossCommands(t *testing.T) {
	s := testShell(t)
	dir := t.TempDir()
	result := s.Execute(ShellCommand{Command: "cd " + dir})
	shellResult := result.(ShellResult)
	require.Equal(t, dir, shellResult.Prompt.Cwd)

	result = s.Execute(ShellCommand{Command: "pwd"})
	shellResult = result.(ShellResult)
	require.Equal(t, dir, shellResult.Prompt.Cwd)
}
