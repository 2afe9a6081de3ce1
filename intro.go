package shellmind

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// initialCommands is the fixed seed list injected once per server
// lifetime so the model's history begins non-empty, with concrete
// examples of the Command/Result shapes it should produce itself
// (§4.5.2, GLOSSARY "INITIAL_COMMANDS"), grounded on server/const.py's
// INITIAL_COMMANDS.
var initialCommands = []Command{
	ShellCommand{Command: "ls -la", Comment: "List files in the current directory"},
	FileWriteCommand{
		File:    "/app/hello.sh",
		Content: "#!/bin/sh\necho hello from the sandbox\n",
		Comment: "Write a file",
	},
	ShellCommand{Command: "sh /app/hello.sh", Comment: "Run the script"},
	FileReadCommand{File: "/app/hello.sh", Comment: "Read the file back"},
}

// introEntry is the YAML shape of one seed command, since Command
// itself is a tagged interface that yaml.v3 can't unmarshal directly.
type introEntry struct {
	Kind    string `yaml:"kind"`
	Command string `yaml:"command,omitempty"`
	File    string `yaml:"file,omitempty"`
	Content string `yaml:"content,omitempty"`
	Comment string `yaml:"comment,omitempty"`
}

func (e introEntry) toCommand() (Command, error) {
	switch e.Kind {
	case "shell":
		return ShellCommand{Command: e.Command, Comment: e.Comment}, nil
	case "file_read":
		return FileReadCommand{File: e.File, Comment: e.Comment}, nil
	case "file_write":
		return FileWriteCommand{File: e.File, Content: e.Content, Comment: e.Comment}, nil
	default:
		return nil, fmt.Errorf("intro seed: unknown kind %q", e.Kind)
	}
}

// loadIntroSeed reads a YAML override for the intro batch from path, of
// the form `- kind: shell\n  command: ls -la\n  comment: ...`. Used to
// let an operator reshape the model's first few turns without
// recompiling (§4.5.2). A missing file is not an error: the built-in
// initialCommands apply.
func loadIntroSeed(path string) ([]Command, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read intro seed %s: %w", path, err)
	}

	var entries []introEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse intro seed %s: %w", path, err)
	}

	cmds := make([]Command, 0, len(entries))
	for _, e := range entries {
		cmd, err := e.toCommand()
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// introBatch returns the one-shot intro command batch along with its
// shared batch comment, used by the server's dispatch loop for its
// first connection (§4.5.2). seedPath, if non-empty, overrides the
// built-in initialCommands with a YAML seed file.
func introBatch(seedPath string) ([]Command, string) {
	if seedPath != "" {
		if seeded, err := loadIntroSeed(seedPath); err == nil && len(seeded) > 0 {
			return seeded, "Initial commands"
		}
	}
	return initialCommands, "Initial commands"
}
