package shellmind

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLexCommandWords(t *testing.T) {
	words, err := lexCommand("ls -la && echo hi | grep hi")
	require.NoError(t, err)
	require.Contains(t, words, "ls")
	require.Contains(t, words, "echo")
	require.Contains(t, words, "grep")
}

func TestLexCommandSyntaxError(t *testing.T) {
	_, err := lexCommand("echo 'unterminated")
	require.Error(t, err)
	var lexErr *LexError
	require.ErrorAs(t, err, &lexErr)
}

func TestDetectInteractive(t *testing.T) {
	prog, bad := detectInteractive("vim /etc/hosts")
	require.True(t, bad)
	require.Equal(t, "vim", prog)

	_, bad = detectInteractive("cat /etc/hosts")
	require.False(t, bad)
}

func TestDetectInteractivePathPrefix(t *testing.T) {
	prog, bad := detectInteractive("/usr/bin/less /var/log/syslog")
	require.True(t, bad)
	require.Equal(t, "less", prog)
}

// TestDetectInteractiveAllowsBatchPrograms guards against widening
// interactivePrograms beyond the spec's exact four names: these are
// ordinary batch invocations the sandbox needs to run routinely, not
// TUIs, and must not be refused.
func TestDetectInteractiveAllowsBatchPrograms(t *testing.T) {
	for _, cmd := range []string{
		"python3 script.py",
		"node app.js",
		"ssh host uptime",
		"mysql -e \"select 1\"",
		"man bash",
		"top -bn1",
	} {
		_, bad := detectInteractive(cmd)
		require.Falsef(t, bad, "command %q should not be refused as interactive", cmd)
	}
}
