package shellmind

import (
	"encoding/json"
	"sort"
	"strings"
)

// ChatMessage is one turn in the conversation handed to the generator,
// mirroring llama_chat.py's use of ChatCompletionRequestMessage.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// simpleShellResult is the compact view of a ShellResult shown to the
// model, grounded on server/llama_chat.py's SimpleShellResult /
// _simplify (§4.4.1).
type simpleShellResult struct {
	Command  string `json:"command,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exit_code"`
}

type simpleFileReadResult struct {
	File    string `json:"file"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

type simpleFileWriteResult struct {
	File    string `json:"file"`
	Content string `json:"content,omitempty"`
	Written int    `json:"written,omitempty"`
	Error   string `json:"error,omitempty"`
}

// joinOutputLines sorts one stream's lines by capture timestamp and
// concatenates their text, one line per "\n" (§4.4.1). stdout and
// stderr are joined separately, so their relative order is not kept.
func joinOutputLines(lines []OutputLine) string {
	if len(lines) == 0 {
		return ""
	}
	sorted := make([]OutputLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	texts := make([]string, len(sorted))
	for i, l := range sorted {
		texts[i] = l.Text
	}
	return strings.Join(texts, "\n") + "\n"
}

func simplify(result Result) any {
	switch r := result.(type) {
	case ShellResult:
		return simpleShellResult{
			Command:  r.Cmd.Command,
			Prompt:   r.Prompt.Prompt,
			Stdout:   joinOutputLines(r.Stdout),
			Stderr:   joinOutputLines(r.Stderr),
			ExitCode: r.ExitCode,
		}
	case FileReadResult:
		s := simpleFileReadResult{File: r.File}
		if r.Content != nil {
			s.Content = *r.Content
		}
		if r.Error != nil {
			s.Error = *r.Error
		}
		return s
	case FileWriteResult:
		s := simpleFileWriteResult{File: r.File, Content: r.Cmd.Content}
		if r.Written != nil {
			s.Written = *r.Written
		}
		if r.Error != nil {
			s.Error = *r.Error
		}
		return s
	default:
		return struct{}{}
	}
}

// flattenResult turns one Result into its assistant/user chat-turn
// pair (§4.4.1).
func flattenResult(result Result) [2]ChatMessage {
	assistant := ChatMessage{Role: "assistant", Content: string(mustMarshal(result.Command()))}
	simplified, err := json.Marshal(simplify(result))
	if err != nil {
		simplified = []byte("{}")
	}
	return [2]ChatMessage{
		assistant,
		{Role: "user", Content: string(simplified)},
	}
}

// flattenHistory expands every Result in history into its two chat
// turns, in order.
func flattenHistory(history []Result) []ChatMessage {
	messages := make([]ChatMessage, 0, len(history)*2)
	for _, r := range history {
		turns := flattenResult(r)
		messages = append(messages, turns[0], turns[1])
	}
	return messages
}
