package shellmind

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// leadingCommentOrBlank matches a command that is empty once a leading
// "#"-comment is stripped, mirroring client/shell.py's _lex blank-line
// shortcut.
var leadingCommentOrBlank = regexp.MustCompile(`^#.*`)

// dummyOutputLine synthesizes a single fabricated output line, used
// for synthetic results (refusals, timeouts, shell I/O failures),
// mirroring client/shell.py's _dummy_out.
func dummyOutputLine(message string) []OutputLine {
	return []OutputLine{{Time: nowSeconds(), Text: message}}
}

// dummyResult builds a ShellResult for a command that was refused
// before reaching bash or whose outcome could not be read back (timeout,
// stdin write or probe failure), still carrying a live prompt snapshot
// so the operator's view of cwd/exit code stays consistent (§4.3.2).
func (s *Shell) dummyResult(command string, exitCode int, stdout, stderr string) ShellResult {
	s.log.WithFields(map[string]any{"command": command, "exit_code": exitCode}).Debug("dummy result")
	s.ensureShell()
	raw, err := s.getPrompt()
	var prompt Prompt
	if err == nil {
		prompt, err = ParsePrompt(raw)
	}
	if err != nil {
		prompt = Prompt{Prompt: raw, ExitCode: exitCode}
	}

	var stdoutLines, stderrLines []OutputLine
	if stdout != "" {
		stdoutLines = dummyOutputLine(stdout)
	}
	if stderr != "" {
		stderrLines = dummyOutputLine(stderr)
	}

	base := s.getBase()
	return ShellResult{
		BaseResult: base,
		Cmd:        ShellCommand{Command: command},
		Stdout:     stdoutLines,
		Stderr:     stderrLines,
		ExitCode:   exitCode,
		Prompt:     prompt,
	}
}

// lexShell pre-parses command for syntax errors and disallowed
// interactive programs, returning a non-nil ShellResult when the
// command should never reach bash (§4.3.2).
func (s *Shell) lexShell(command string) *ShellResult {
	if strings.TrimSpace(leadingCommentOrBlank.ReplaceAllString(command, "")) == "" {
		r := s.dummyResult(command, 0, "", "")
		return &r
	}

	if _, err := lexCommand(command); err != nil {
		r := s.dummyResult(command, 2, "", err.Error())
		return &r
	}
	if prog, bad := detectInteractive(command); bad {
		r := s.dummyResult(command, -3, "", fmt.Sprintf("Not a terminal: %s", prog))
		return &r
	}
	return nil
}

// getConfig reads the sandbox's ambient system prompt, goal, and
// generation config files, mirroring client/shell.py's _get_config. A
// missing or invalid file yields nil rather than an error.
func (s *Shell) getConfig() (system, goal *string, config *GenerationConfig) {
	if data, err := os.ReadFile(PathSystemPrompt); err == nil {
		text := string(data)
		system = &text
	}
	if data, err := os.ReadFile(PathGoal); err == nil {
		text := strings.TrimSpace(string(data))
		goal = &text
	}
	if data, err := os.ReadFile(PathConfig); err == nil {
		config = ParseGenerationConfig(data)
		if config == nil {
			s.log.WithField("file", PathConfig).Debug("invalid generation config, ignoring")
		}
	}
	return system, goal, config
}

func (s *Shell) getBase() BaseResult {
	system, goal, config := s.getConfig()
	var raw []byte
	if config != nil {
		raw = mustMarshal(config)
	}
	return BaseResult{System: system, Goal: goal, Config: raw}
}

// executeShell runs cmd in the persistent bash session, reaping any
// leftover background children from a previous command before it does
// so (§4.3.2, §4.3.4).
func (s *Shell) executeShell(cmd ShellCommand) ShellResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if invalid := s.lexShell(cmd.Command); invalid != nil {
		s.log.WithField("command", cmd.Command).Error("command refused due to syntax error")
		return *invalid
	}

	s.log.WithField("command", cmd.Command).Debug("running command")
	s.ensureShell()

	if children, err := s.shellChildren(); err == nil && len(children) > 0 {
		s.log.Error("shell still has old children")
		if !s.killShellChildren(false) {
			s.log.Error("failed to terminate old shell children")
			s.killShellChildren(true)
		}
	}

	if err := s.putStdin(cmd.Command); err != nil {
		return s.dummyResult(cmd.Command, -1, "", err.Error())
	}
	start := time.Now()
	raw, err := s.getPrompt()
	elapsed := time.Since(start)
	if err != nil {
		var timedOut *ErrCommandTimedOut
		if errors.As(err, &timedOut) {
			return s.dummyResult(cmd.Command, -2, "", "Command timed out")
		}
		return s.dummyResult(cmd.Command, -1, "", err.Error())
	}
	prompt, err := ParsePrompt(raw)
	if err != nil {
		s.log.WithError(err).Fatal("shell prompt does not match the expected format")
	}
	s.log.WithFields(map[string]any{
		"exit_code": prompt.ExitCode,
		"elapsed_s": elapsed.Seconds(),
	}).Debug("command finished")

	return ShellResult{
		BaseResult: s.getBase(),
		Cmd:        cmd,
		Stdout:     s.stdout.drain(),
		Stderr:     s.stderr.drain(),
		ExitCode:   prompt.ExitCode,
		Prompt:     prompt,
	}
}

func fileErrorMessage(err error) string {
	switch {
	case os.IsNotExist(err):
		return "file not found"
	case strings.Contains(err.Error(), "is a directory"):
		return "is a directory"
	default:
		return err.Error()
	}
}

// executeFileRead reads the contents of a sandbox file, grounded on
// client/shell.py's _execute_file FileReadCommand branch.
func (s *Shell) executeFileRead(cmd FileReadCommand) FileReadResult {
	s.log.WithField("file", cmd.File).Debug("reading file")
	base := s.getBase()
	data, err := os.ReadFile(cmd.File)
	if err != nil {
		msg := fileErrorMessage(err)
		s.log.WithField("file", cmd.File).WithError(err).Debug("failed to read file")
		return FileReadResult{BaseResult: base, Cmd: cmd, File: cmd.File, Error: &msg}
	}
	content := string(data)
	return FileReadResult{BaseResult: base, Cmd: cmd, File: cmd.File, Content: &content}
}

// executeFileWrite overwrites a sandbox file, grounded on
// client/shell.py's _execute_file FileWriteCommand branch.
func (s *Shell) executeFileWrite(cmd FileWriteCommand) FileWriteResult {
	s.log.WithField("file", cmd.File).Debug("writing file")
	base := s.getBase()
	if err := os.WriteFile(cmd.File, []byte(cmd.Content), 0o644); err != nil {
		msg := fileErrorMessage(err)
		s.log.WithField("file", cmd.File).WithError(err).Debug("failed to write file")
		return FileWriteResult{BaseResult: base, Cmd: cmd, File: cmd.File, Error: &msg}
	}
	written := len(cmd.Content)
	return FileWriteResult{BaseResult: base, Cmd: cmd, File: cmd.File, Written: &written}
}

// Execute dispatches cmd to the matching executor, returning its
// Result. Mirrors client/shell.py's Shell.execute overload set.
func (s *Shell) Execute(cmd Command) Result {
	switch c := cmd.(type) {
	case ShellCommand:
		return s.executeShell(c)
	case FileReadCommand:
		return s.executeFileRead(c)
	case FileWriteCommand:
		return s.executeFileWrite(c)
	default:
		return s.dummyResult(fmt.Sprintf("%v", cmd), -1, "", fmt.Sprintf("invalid command type %T", cmd))
	}
}
