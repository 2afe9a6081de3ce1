package shellmind

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// defaultMutableSystemPrompt is shown to the model until it writes its
// own via /app/system.md, grounded on server/llama_chat.py's fallback
// string in append_command.
const defaultMutableSystemPrompt = "Write your system prompt to /app/system.md."

// Compactor maintains the conversation history and assembles each
// generation's prompt, enforcing the token budget and feeding dynamic
// reconfiguration back into the next generation (§4.4, grounded on
// server/llama_chat.py's LlamaChat).
type Compactor struct {
	log *logrus.Logger

	systemStatic  string
	systemMutable string
	goal          string
	defaultGoal   string
	config        *GenerationConfig

	history   []Result
	tokenizer Tokenizer
	generator Generator
	schema    *resolvedCommandListSchema
	nCtx      int
}

// NewCompactor builds a Compactor with an empty history. systemStatic
// is read once at startup (the operator's system.md); defaultGoal
// seeds the goal until a command's BaseResult supplies one.
func NewCompactor(
	log *logrus.Logger,
	systemStatic, defaultGoal string,
	nCtx int,
	tokenizer Tokenizer,
	generator Generator,
) (*Compactor, error) {
	schema, err := newResolvedCommandListSchema()
	if err != nil {
		return nil, err
	}
	return &Compactor{
		log:           log,
		systemStatic:  systemStatic,
		systemMutable: defaultMutableSystemPrompt,
		goal:          defaultGoal,
		defaultGoal:   defaultGoal,
		config:        &GenerationConfig{},
		tokenizer:     tokenizer,
		generator:     generator,
		schema:        schema,
		nCtx:          nCtx,
	}, nil
}

// systemMessage renders the combined system chat message, mirroring
// LlamaChat.system (§4.4).
func (c *Compactor) systemMessage() ChatMessage {
	return ChatMessage{
		Role: "system",
		Content: fmt.Sprintf(
			"# Primary goal: %s\n\n%s\n\n=====\n\n%s",
			c.goal, c.systemStatic, c.systemMutable,
		),
	}
}

func (c *Compactor) buildMessages() []ChatMessage {
	messages := make([]ChatMessage, 0, 1+len(c.history)*2)
	messages = append(messages, c.systemMessage())
	messages = append(messages, flattenHistory(c.history)...)
	return messages
}

// GetCommands assembles the prompt, dropping the oldest history entry
// whenever it exceeds nCtx-TokenBuffer, then asks the generator for the
// next batch of commands (§4.4.2, §4.4.4, §8 property #5).
func (c *Compactor) GetCommands(ctx context.Context) ([]Command, error) {
	budget := c.nCtx - TokenBuffer
	for {
		messages := c.buildMessages()
		tokens, err := c.tokenizer.CountTokens(messages)
		if err != nil {
			return nil, fmt.Errorf("count tokens: %w", err)
		}
		if tokens <= budget {
			raw, err := c.generator.Generate(ctx, messages, c.schema.schema, c.config)
			if err != nil {
				return nil, fmt.Errorf("generate commands: %w", err)
			}
			return c.schema.validateAndParse(raw)
		}
		if len(c.history) == 0 {
			return nil, &ErrContextExhausted{PromptTokens: tokens, Budget: budget}
		}
		dropped := c.history[0]
		c.history = c.history[1:]
		c.log.WithField("kind", dropped.ResultType()).Debug("dropped oldest history entry")
	}
}

// AppendResult records one Result and lets its BaseResult fields
// reconfigure the next generation (§4.4.3).
func (c *Compactor) AppendResult(result Result) {
	base := result.Base()
	if len(base.Config) > 0 {
		if parsed := ParseGenerationConfig(base.Config); parsed != nil {
			c.config = parsed
		} else {
			c.config = &GenerationConfig{}
		}
	} else {
		c.config = &GenerationConfig{}
	}
	if base.System != nil && *base.System != "" {
		c.systemMutable = *base.System
	} else {
		c.systemMutable = defaultMutableSystemPrompt
	}
	if base.Goal != nil && *base.Goal != "" {
		c.goal = *base.Goal
	} else {
		c.goal = c.defaultGoal
	}
	c.history = append(c.history, result)
}

// AppendResults records a whole batch of Results. Callers must only
// invoke this after an entire dispatch batch round-trips successfully
// (§4.5.3, §8 property #6); a partial batch must never reach here.
func (c *Compactor) AppendResults(results []Result) {
	for _, r := range results {
		c.AppendResult(r)
	}
}

// HistoryLen reports the current number of retained history entries.
func (c *Compactor) HistoryLen() int { return len(c.history) }
