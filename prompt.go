package shellmind

import (
	"regexp"
	"strconv"
)

// promptPattern is the regex the shell's expanded PS1 must match
// (§4.3.3). The operator-configured PS1 template is `$? \u@\h:\w # `;
// bash's `${PS1@P}` expansion turns that into a literal string of this
// shape.
var promptPattern = regexp.MustCompile(
	`^(?P<exit_code>[0-9]+) (?P<user>.+)@(?P<host>.+):(?P<cwd>.+) (?P<usertype>[$#]) $`,
)

// ParsePrompt parses a shell-expanded PS1 string into its components.
// Returns ErrPromptMismatch if raw does not match promptPattern.
func ParsePrompt(raw string) (Prompt, error) {
	match := promptPattern.FindStringSubmatch(raw)
	if match == nil {
		return Prompt{}, &ErrPromptMismatch{Raw: raw}
	}
	names := promptPattern.SubexpNames()
	groups := make(map[string]string, len(names))
	for i, name := range names {
		if name != "" {
			groups[name] = match[i]
		}
	}

	exitCode, err := strconv.Atoi(groups["exit_code"])
	if err != nil {
		return Prompt{}, &ErrPromptMismatch{Raw: raw}
	}
	usertype, ok := usertypeFromSigil(groups["usertype"][0])
	if !ok {
		return Prompt{}, &ErrPromptMismatch{Raw: raw}
	}

	return Prompt{
		Prompt:   raw,
		ExitCode: exitCode,
		User:     groups["user"],
		Host:     groups["host"],
		Cwd:      groups["cwd"],
		UserType: usertype,
	}, nil
}

// FormatPrompt renders a Prompt's components back into the literal PS1
// string ParsePrompt would accept. It is the inverse used by tests (§8
// property #2: parse is total and a left inverse of format over the
// regex's character classes).
func FormatPrompt(user, host, cwd string, exitCode int, usertype UserType) string {
	sigil := byte('$')
	if usertype == UserTypeRoot {
		sigil = '#'
	}
	return strconv.Itoa(exitCode) + " " + user + "@" + host + ":" + cwd + " " + string(sigil) + " "
}
