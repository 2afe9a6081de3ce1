package shellmind

import (
	"encoding/json"
	"fmt"
)

// UserType is the sigil-derived kind of the shell's current user, parsed
// from PS1 (§4.3.3): '$' is an unprivileged user, '#' is root.
type UserType string

const (
	UserTypeUser UserType = "user"
	UserTypeRoot UserType = "root"
)

// usertypeFromSigil maps the PS1 sigil character to a UserType.
func usertypeFromSigil(sigil byte) (UserType, bool) {
	switch sigil {
	case '$':
		return UserTypeUser, true
	case '#':
		return UserTypeRoot, true
	default:
		return "", false
	}
}

// Prompt is the parsed form of the shell's PS1, captured once per
// command via the FIFO probe described in §4.3.3.
type Prompt struct {
	Prompt   string   `json:"prompt"`
	ExitCode int      `json:"exit_code"`
	User     string   `json:"user"`
	Host     string   `json:"host"`
	Cwd      string   `json:"cwd"`
	UserType UserType `json:"usertype"`
}

// OutputLine pairs a monotonic-clock timestamp with one line of output.
// stdout and stderr lines are interleaved by sorting on Time when
// rendered or flattened for the model (§4.4.1, §5).
type OutputLine struct {
	Time float64 `json:"time"`
	Text string  `json:"text"`
}

// BaseResult is the envelope attached to every Result: a snapshot of the
// operator-visible configuration read from the sandbox filesystem at the
// moment the command finished (§4.3.1). It is how commands executed
// inside the sandbox feed back into the generator's configuration
// (§4.4.3).
type BaseResult struct {
	System *string         `json:"system,omitempty"`
	Goal   *string         `json:"goal,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Result is one structured outcome of executing a Command. Every Result
// carries a copy of the Command that produced it (§3 invariants:
// consumers must not trust the Command field separately from the
// Result).
type Result interface {
	Command() Command
	ResultType() string
	Base() BaseResult
}

// ShellResult is the outcome of a ShellCommand.
type ShellResult struct {
	Cmd      ShellCommand `json:"command"`
	Stdout   []OutputLine `json:"stdout,omitempty"`
	Stderr   []OutputLine `json:"stderr,omitempty"`
	ExitCode int          `json:"exit_code"`
	Prompt   Prompt       `json:"prompt"`
	BaseResult
}

func (r ShellResult) Command() Command   { return r.Cmd }
func (r ShellResult) ResultType() string { return "shell" }
func (r ShellResult) Base() BaseResult   { return r.BaseResult }

// FileReadResult is the outcome of a FileReadCommand. Content is nil
// when Error is set.
type FileReadResult struct {
	Cmd     FileReadCommand `json:"command"`
	File    string          `json:"file"`
	Content *string         `json:"content,omitempty"`
	Error   *string         `json:"error,omitempty"`
	BaseResult
}

func (r FileReadResult) Command() Command   { return r.Cmd }
func (r FileReadResult) ResultType() string { return "file_read" }
func (r FileReadResult) Base() BaseResult   { return r.BaseResult }

// FileWriteResult is the outcome of a FileWriteCommand. Written holds
// the byte count written on success.
type FileWriteResult struct {
	Cmd     FileWriteCommand `json:"command"`
	File    string           `json:"file"`
	Written *int             `json:"written,omitempty"`
	Error   *string          `json:"error,omitempty"`
	BaseResult
}

func (r FileWriteResult) Command() Command   { return r.Cmd }
func (r FileWriteResult) ResultType() string { return "file_write" }
func (r FileWriteResult) Base() BaseResult   { return r.BaseResult }

// resultEnvelope is the wire representation of a Result, tagged the same
// way commandEnvelope is (§4.2).
type resultEnvelope struct {
	Kind       string          `json:"kind"`
	Command    json.RawMessage `json:"command"`
	File       string          `json:"file,omitempty"`
	Stdout     []OutputLine    `json:"stdout,omitempty"`
	Stderr     []OutputLine    `json:"stderr,omitempty"`
	ExitCode   *int            `json:"exit_code,omitempty"`
	Prompt     *Prompt         `json:"prompt,omitempty"`
	Content    *string         `json:"content,omitempty"`
	Written    *int            `json:"written,omitempty"`
	ResultErr  *string         `json:"error,omitempty"`
	BaseResult BaseResult      `json:"base"`
}

func (r ShellResult) MarshalJSON() ([]byte, error) {
	ec := r.ExitCode
	return json.Marshal(resultEnvelope{
		Kind: r.ResultType(), Command: mustMarshal(r.Cmd), Stdout: r.Stdout,
		Stderr: r.Stderr, ExitCode: &ec, Prompt: &r.Prompt, BaseResult: r.BaseResult,
	})
}

func (r FileReadResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultEnvelope{
		Kind: r.ResultType(), Command: mustMarshal(r.Cmd), File: r.File,
		Content: r.Content, ResultErr: r.Error, BaseResult: r.BaseResult,
	})
}

func (r FileWriteResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultEnvelope{
		Kind: r.ResultType(), Command: mustMarshal(r.Cmd), File: r.File,
		Written: r.Written, ResultErr: r.Error, BaseResult: r.BaseResult,
	})
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Command types only contain strings; marshaling cannot fail.
		panic(fmt.Sprintf("shellmind: marshal command: %v", err))
	}
	return data
}

// ParseResult decodes one JSON object into the concrete Result variant
// named by its "kind" field.
func ParseResult(data []byte) (Result, error) {
	var env resultEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode result envelope: %w", err)
	}
	switch env.Kind {
	case "shell":
		var cmd ShellCommand
		if err := json.Unmarshal(env.Command, &cmd); err != nil {
			return nil, fmt.Errorf("%w: decode shell command: %v", ErrValidation, err)
		}
		exitCode := 0
		if env.ExitCode != nil {
			exitCode = *env.ExitCode
		}
		var prompt Prompt
		if env.Prompt != nil {
			prompt = *env.Prompt
		}
		return ShellResult{
			Cmd: cmd, Stdout: env.Stdout, Stderr: env.Stderr,
			ExitCode: exitCode, Prompt: prompt, BaseResult: env.BaseResult,
		}, nil
	case "file_read":
		var cmd FileReadCommand
		if err := json.Unmarshal(env.Command, &cmd); err != nil {
			return nil, fmt.Errorf("%w: decode file_read command: %v", ErrValidation, err)
		}
		return FileReadResult{
			Cmd: cmd, File: env.File, Content: env.Content, Error: env.ResultErr,
			BaseResult: env.BaseResult,
		}, nil
	case "file_write":
		var cmd FileWriteCommand
		if err := json.Unmarshal(env.Command, &cmd); err != nil {
			return nil, fmt.Errorf("%w: decode file_write command: %v", ErrValidation, err)
		}
		return FileWriteResult{
			Cmd: cmd, File: env.File, Written: env.Written, Error: env.ResultErr,
			BaseResult: env.BaseResult,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown result kind %q", ErrValidation, env.Kind)
	}
}
