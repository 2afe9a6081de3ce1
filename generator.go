package shellmind

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Generator is the schema-constrained text generator the compactor
// depends on (§4.4.4, §9 "Schema-constrained generation"). Any runtime
// that can honor "given schema S, return JSON valid under S" satisfies
// this contract; the core never couples to one particular model
// runtime or grammar compiler, mirroring server/llama_server.py's
// LlamaServer.chat at arm's length.
type Generator interface {
	// Generate returns a JSON string that should parse as a
	// []Command under schema. config may be nil, meaning "use the
	// generator's own defaults".
	Generate(ctx context.Context, messages []ChatMessage, schema *jsonschema.Schema, config *GenerationConfig) (string, error)
}

// commandListSchema builds the JSON Schema describing a valid
// []Command wire payload, generated via google/jsonschema-go from the
// envelope type rather than hand-maintained, so the schema and
// ParseCommand never drift (§4.4.4).
func commandListSchema() (*jsonschema.Schema, error) {
	itemSchema, err := jsonschema.For[commandEnvelope](nil)
	if err != nil {
		return nil, fmt.Errorf("build command schema: %w", err)
	}
	itemSchema.Required = []string{"kind"}
	return &jsonschema.Schema{
		Type:  "array",
		Items: itemSchema,
	}, nil
}

// resolvedCommandListSchema caches the resolved schema used to
// validate generator output against; resolution is not safe to race,
// so callers set this up once at startup.
type resolvedCommandListSchema struct {
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

// newResolvedCommandListSchema builds and resolves the schema once.
func newResolvedCommandListSchema() (*resolvedCommandListSchema, error) {
	schema, err := commandListSchema()
	if err != nil {
		return nil, err
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve command schema: %w", err)
	}
	return &resolvedCommandListSchema{schema: schema, resolved: resolved}, nil
}

// validateAndParse validates raw JSON against the command-list schema
// and decodes it into concrete Command values. A schema or decode
// failure is wrapped in ErrValidation so the caller can tell "skip this
// turn" failures (§4.4.4, §7) apart from transport errors.
func (r *resolvedCommandListSchema) validateAndParse(raw string) ([]Command, error) {
	var generic []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, fmt.Errorf("%w: generator output is not a JSON array: %v", ErrValidation, err)
	}

	var instance any
	if err := json.Unmarshal([]byte(raw), &instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := r.resolved.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: generator output failed schema validation: %v", ErrValidation, err)
	}

	cmds := make([]Command, 0, len(generic))
	for _, item := range generic {
		cmd, err := ParseCommand(item)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}
