package shellmind

import (
	"context"
	"errors"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/require"
)

// fixedTokenizer charges a fixed token cost per ChatMessage, so tests
// can control the budget precisely without a real model vocabulary.
type fixedTokenizer struct{ perMessage int }

func (f fixedTokenizer) CountTokens(messages []ChatMessage) (int, error) {
	return len(messages) * f.perMessage, nil
}

// scriptedGenerator returns canned JSON on each call in sequence, and an
// error once the script is used up.
type scriptedGenerator struct {
	responses []string
	calls     int
}

func (g *scriptedGenerator) Generate(_ context.Context, _ []ChatMessage, _ *jsonschema.Schema, _ *GenerationConfig) (string, error) {
	if g.calls >= len(g.responses) {
		return "", errors.New("scriptedGenerator: no more responses")
	}
	resp := g.responses[g.calls]
	g.calls++
	return resp, nil
}

func shellResultFixture(command string) ShellResult {
	return ShellResult{
		Cmd:      ShellCommand{Command: command},
		ExitCode: 0,
		Prompt:   Prompt{Prompt: "0 root@box:/app # "},
	}
}

func TestCompactorDropsOldestUntilFits(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`[{"kind":"shell","command":"echo hi"}]`}}
	c, err := NewCompactor(NewLogger("debug"), "sys", "goal", 0, fixedTokenizer{perMessage: 10}, gen)
	require.NoError(t, err)
	c.nCtx = 1*10 + TokenBuffer + 5 // budget fits exactly one message after drops

	for i := 0; i < 5; i++ {
		c.AppendResult(shellResultFixture("echo one"))
	}
	require.Equal(t, 5, c.HistoryLen())

	cmds, err := c.GetCommands(context.Background())
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	require.Less(t, c.HistoryLen(), 5)
}

func TestCompactorNoDropWhenFits(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`[{"kind":"shell","command":"echo hi"}]`}}
	c, err := NewCompactor(NewLogger("debug"), "sys", "goal", 100000, fixedTokenizer{perMessage: 1}, gen)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		c.AppendResult(shellResultFixture("echo one"))
	}
	before := c.HistoryLen()
	_, err = c.GetCommands(context.Background())
	require.NoError(t, err)
	require.Equal(t, before, c.HistoryLen())
}

func TestCompactorContextExhausted(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`[]`}}
	c, err := NewCompactor(NewLogger("debug"), "sys", "goal", 0, fixedTokenizer{perMessage: 100}, gen)
	require.NoError(t, err)
	c.nCtx = 1 // budget is negative once TokenBuffer is subtracted; nothing fits

	_, err = c.GetCommands(context.Background())
	require.Error(t, err)
	var exhausted *ErrContextExhausted
	require.ErrorAs(t, err, &exhausted)
}

func TestCompactorReconfiguresFromBaseResult(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`[]`, `[]`}}
	c, err := NewCompactor(NewLogger("debug"), "sys", "initial goal", 100000, fixedTokenizer{perMessage: 1}, gen)
	require.NoError(t, err)

	newGoal := "new goal"
	newSystem := "new mutable system"
	result := shellResultFixture("echo hi")
	result.BaseResult = BaseResult{Goal: &newGoal, System: &newSystem}
	c.AppendResult(result)

	require.Equal(t, newGoal, c.goal)
	require.Equal(t, newSystem, c.systemMutable)

	result2 := shellResultFixture("echo hi")
	c.AppendResult(result2)
	require.Equal(t, "initial goal", c.goal)
	require.Equal(t, defaultMutableSystemPrompt, c.systemMutable)
}

func TestCompactorBatchAppendIsAllOrNothing(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`[]`}}
	c, err := NewCompactor(NewLogger("debug"), "sys", "goal", 100000, fixedTokenizer{perMessage: 1}, gen)
	require.NoError(t, err)

	require.Equal(t, 0, c.HistoryLen())
	c.AppendResults([]Result{shellResultFixture("a"), shellResultFixture("b")})
	require.Equal(t, 2, c.HistoryLen())
}
