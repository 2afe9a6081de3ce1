package shellmind

import (
	"encoding/json"
	"fmt"
)

// Command is one unit of work the model wants performed against the
// sandbox: a shell invocation, or a file read/write.
//
// Concrete types implement CommandType() so a Result can always carry
// back the command that produced it (see the Result interface) without
// the consumer needing to re-derive the tag from JSON.
type Command interface {
	CommandType() string
}

// ShellCommand asks the executor to run bash source in the persistent
// shell.
type ShellCommand struct {
	Command string `json:"command"`
	Comment string `json:"comment,omitempty"`
}

// CommandType implements Command.
func (c ShellCommand) CommandType() string { return "shell" }

// FileReadCommand asks the executor to read a file from the sandbox
// filesystem. File may be absolute or relative to the shell's cwd.
type FileReadCommand struct {
	File    string `json:"file"`
	Comment string `json:"comment,omitempty"`
}

// CommandType implements Command.
func (c FileReadCommand) CommandType() string { return "file_read" }

// FileWriteCommand asks the executor to write Content to File, creating
// or truncating it.
type FileWriteCommand struct {
	File    string `json:"file"`
	Content string `json:"content"`
	Comment string `json:"comment,omitempty"`
}

// CommandType implements Command.
func (c FileWriteCommand) CommandType() string { return "file_write" }

// commandEnvelope is the wire representation of a Command: an explicit
// "kind" discriminator plus the union of all possible fields. Spec §4.2
// permits either structural disambiguation (trial-parse each variant) or
// an explicit tag; we use an explicit tag; it is unambiguous and cheap to
// validate against the generation schema (see generator.go).
type commandEnvelope struct {
	Kind    string `json:"kind"`
	Command string `json:"command,omitempty"`
	File    string `json:"file,omitempty"`
	Content string `json:"content,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// MarshalJSON implements json.Marshaler for each concrete Command type by
// routing through commandEnvelope.
func (c ShellCommand) MarshalJSON() ([]byte, error) {
	return json.Marshal(commandEnvelope{
		Kind: c.CommandType(), Command: c.Command, Comment: c.Comment,
	})
}

func (c FileReadCommand) MarshalJSON() ([]byte, error) {
	return json.Marshal(commandEnvelope{
		Kind: c.CommandType(), File: c.File, Comment: c.Comment,
	})
}

func (c FileWriteCommand) MarshalJSON() ([]byte, error) {
	return json.Marshal(commandEnvelope{
		Kind: c.CommandType(), File: c.File, Content: c.Content, Comment: c.Comment,
	})
}

// ParseCommand decodes one JSON object into the concrete Command variant
// named by its "kind" field.
func ParseCommand(data []byte) (Command, error) {
	var env commandEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode command envelope: %w", err)
	}
	switch env.Kind {
	case "shell":
		return ShellCommand{Command: env.Command, Comment: env.Comment}, nil
	case "file_read":
		return FileReadCommand{File: env.File, Comment: env.Comment}, nil
	case "file_write":
		return FileWriteCommand{File: env.File, Content: env.Content, Comment: env.Comment}, nil
	default:
		return nil, fmt.Errorf("%w: unknown command kind %q", ErrValidation, env.Kind)
	}
}

// ParseCommands decodes a JSON array of commands, as returned by the
// schema-constrained generator (§4.4.4).
func ParseCommands(data []byte) ([]Command, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode command list: %v", ErrValidation, err)
	}
	cmds := make([]Command, 0, len(raw))
	for _, r := range raw {
		cmd, err := ParseCommand(r)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}
