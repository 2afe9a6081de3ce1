package shellmind

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// interactivePrograms names commands that require a TUI and hang a
// headless shell indefinitely, matching client/const.py's
// SHELL_INTERACTIVE_COMMANDS exactly (§4.3.2, §12): widening this set
// would refuse ordinary batch invocations (e.g. "python3 script.py",
// "ssh host uptime") that the sandbox needs to run routinely.
var interactivePrograms = map[string]struct{}{
	"vim": {}, "nano": {}, "less": {}, "more": {},
}

// LexError reports a syntax error found while pre-parsing a command
// string, carrying enough detail for a Result's error field.
type LexError struct {
	Msg string
}

func (e *LexError) Error() string { return e.Msg }

// lexCommand parses raw with the bash dialect and returns the leaf
// command-word names it would invoke. A syntax error is returned as
// *LexError rather than propagated raw, since callers only care that
// parsing failed, not about mvdan.cc/sh's internal position types
// (§4.3.2 step 1).
func lexCommand(raw string) ([]string, error) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(raw), "")
	if err != nil {
		return nil, &LexError{Msg: err.Error()}
	}

	var words []string
	syntax.Walk(file, func(node syntax.Node) bool {
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}
		if name := literalWord(call.Args[0]); name != "" {
			words = append(words, baseProgram(name))
		}
		return true
	})
	return words, nil
}

// literalWord extracts a word's literal text when it contains no
// expansions, returning "" otherwise (a dynamic command name can't be
// checked against the interactive-program table ahead of time).
func literalWord(w *syntax.Word) string {
	if len(w.Parts) != 1 {
		return ""
	}
	lit, ok := w.Parts[0].(*syntax.Lit)
	if !ok {
		return ""
	}
	return lit.Value
}

// baseProgram strips a leading path, so "/usr/bin/vim" and "vim" both
// match the interactivePrograms table.
func baseProgram(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// detectInteractive reports the first word in raw that names a known
// interactive program, so the shell can reject the command before it
// ever reaches bash and hangs the session (§4.3.2, §12).
func detectInteractive(raw string) (string, bool) {
	words, err := lexCommand(raw)
	if err != nil {
		return "", false
	}
	for _, w := range words {
		if _, bad := interactivePrograms[w]; bad {
			return w, true
		}
	}
	return "", false
}
