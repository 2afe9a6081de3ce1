// Command shellmind-mcp-server bridges the Model Context Protocol to a
// shellmind sandbox: it listens for one shellmind-agent connection,
// then exposes the agent's shell and file commands as MCP tools over
// stdio, so any MCP client can drive the sandbox directly instead of
// going through the schema-constrained generator loop.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pikaro/shellmind"
)

// bridge owns the one connection to a shellmind-agent and serializes
// command/result round-trips, since the wire protocol allows exactly
// one in-flight command at a time (§5 "strictly ordered and
// synchronous request/response").
type bridge struct {
	mu sync.Mutex
	fc *shellmind.FrameConn
}

func (b *bridge) roundTrip(cmd shellmind.Command) (shellmind.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fc.Send(cmd); err != nil {
		return nil, err
	}
	raw, err := b.fc.Recv()
	if err != nil {
		return nil, err
	}
	return shellmind.ParseResult(raw)
}

func main() {
	cfg, err := shellmind.LoadServerConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	fc, err := shellmind.AcceptOneAgent(cfg.Port)
	if err != nil {
		log.Fatalf("accept agent: %v", err)
	}

	b := &bridge{fc: fc}
	server := mcp.NewServer(&mcp.Implementation{Name: "shellmind-mcp-server", Version: "1.0.0"}, nil)

	type shellArgs struct {
		Command string `json:"command" jsonschema:"Shell command line to run in the sandbox"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_shell_command",
		Description: "Run a command in the sandbox's persistent shell and return its output",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args shellArgs) (*mcp.CallToolResult, any, error) {
		result, err := b.roundTrip(shellmind.ShellCommand{Command: args.Command})
		if err != nil {
			return nil, nil, err
		}
		shellResult := result.(shellmind.ShellResult)
		text := fmt.Sprintf("exit_code=%d\nprompt=%s", shellResult.ExitCode, shellResult.Prompt.Prompt)
		for _, line := range shellResult.Stdout {
			text += "\nstdout: " + line.Text
		}
		for _, line := range shellResult.Stderr {
			text += "\nstderr: " + line.Text
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, nil, nil
	})

	type fileReadArgs struct {
		File string `json:"file" jsonschema:"Path to read inside the sandbox"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "read_file",
		Description: "Read a file from the sandbox filesystem",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileReadArgs) (*mcp.CallToolResult, any, error) {
		result, err := b.roundTrip(shellmind.FileReadCommand{File: args.File})
		if err != nil {
			return nil, nil, err
		}
		readResult := result.(shellmind.FileReadResult)
		if readResult.Error != nil {
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: *readResult.Error}}, IsError: true}, nil, nil
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: *readResult.Content}}}, nil, nil
	})

	type fileWriteArgs struct {
		File    string `json:"file" jsonschema:"Path to write inside the sandbox"`
		Content string `json:"content" jsonschema:"Content to write"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "write_file",
		Description: "Write a file to the sandbox filesystem, creating or truncating it",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args fileWriteArgs) (*mcp.CallToolResult, any, error) {
		result, err := b.roundTrip(shellmind.FileWriteCommand{File: args.File, Content: args.Content})
		if err != nil {
			return nil, nil, err
		}
		writeResult := result.(shellmind.FileWriteResult)
		if writeResult.Error != nil {
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: *writeResult.Error}}, IsError: true}, nil, nil
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("wrote %d bytes", *writeResult.Written)}}}, nil, nil
	})

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("mcp server failed: %v", err)
	}
	_ = os.Stdout
}
