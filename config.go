package shellmind

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names (§6).
const (
	EnvLlamaPort       = "LLAMA_PORT"
	EnvPocketASIPort   = "POCKET_ASI_PORT"
	EnvExitTimeout     = "LLAMA_EXIT_TIMEOUT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvDefaultGoal     = "LLAMA_DEFAULT_GOAL"
	EnvPS1             = "PS1"
	EnvReconnectDelay  = "LLAMA_RECONNECT_DELAY"
	EnvKillTimeout     = "LLAMA_KILL_TIMEOUT"
	EnvNCtx            = "LLAMA_N_CTX"
	EnvStreamResponse  = "LLAMA_STREAM_RESPONSE"
	EnvGeneratorURL    = "LLAMA_GENERATOR_URL"
	EnvSystemPromptPath = "LLAMA_SYSTEM_PROMPT_PATH"
	EnvIntroSeedPath   = "LLAMA_INTRO_SEED_PATH"
)

// Default PS1 template: bash expands this (via ${PS1@P}) into the
// literal prompt string matched by promptPattern (§4.3.3).
const DefaultPS1 = `$? \u@\h:\w # `

// Default timing/size constants (§4.2, §4.4.2, §6, GLOSSARY).
const (
	DefaultPort           = 1199
	DefaultExitTimeout    = 10 * time.Second
	DefaultKillTimeout    = 1 * time.Second
	DefaultReconnectDelay = 2 * time.Second
	TokenBuffer           = 512
	DefaultNCtx           = 8192
)

// DefaultGeneratorURL points at a local llama.cpp server instance
// running its OpenAI-compatible HTTP API.
const DefaultGeneratorURL = "http://127.0.0.1:8081"

// DefaultSystemPromptPath is where the server reads its static system
// prompt from at startup, distinct from the sandbox-mutable
// PathSystemPrompt the shell feeds back through BaseResult.
const DefaultSystemPromptPath = "system.md"

// sandbox filesystem contract paths (§6).
const (
	PathSystemPrompt = "/app/system.md"
	PathGoal         = "/app/goal"
	PathConfig       = "/app/config.json"
)

// ServerConfig holds the server process's startup configuration, parsed
// once from the environment (§10.2).
type ServerConfig struct {
	Port            int
	ExitTimeout     time.Duration
	LogLevel        string
	DefaultGoal     string
	NCtx            int
	StreamOutput    bool
	GeneratorURL    string
	SystemPromptPath string
	IntroSeedPath   string
}

// LoadServerConfig reads the server's environment variables. PS1 is not
// consulted server-side; it governs the client's shell probe.
func LoadServerConfig() (ServerConfig, error) {
	port, err := envInt(EnvPocketASIPort, DefaultPort)
	if err != nil {
		return ServerConfig{}, err
	}
	timeout, err := envDuration(EnvExitTimeout, DefaultExitTimeout)
	if err != nil {
		return ServerConfig{}, err
	}
	nCtx, err := envInt(EnvNCtx, DefaultNCtx)
	if err != nil {
		return ServerConfig{}, err
	}
	return ServerConfig{
		Port:             port,
		ExitTimeout:      timeout,
		LogLevel:         envString(EnvLogLevel, "info"),
		DefaultGoal:      envString(EnvDefaultGoal, ""),
		NCtx:             nCtx,
		StreamOutput:     envBool(EnvStreamResponse, true),
		GeneratorURL:     envString(EnvGeneratorURL, DefaultGeneratorURL),
		SystemPromptPath: envString(EnvSystemPromptPath, DefaultSystemPromptPath),
		IntroSeedPath:    envString(EnvIntroSeedPath, ""),
	}, nil
}

// ClientConfig holds the client process's startup configuration.
type ClientConfig struct {
	Host            string
	Port            int
	ExitTimeout     time.Duration
	KillTimeout     time.Duration
	ReconnectDelay  time.Duration
	PS1             string
	LogLevel        string
}

// LoadClientConfig reads the client's environment variables and
// validates PS1 against promptPattern's expected shape up front: a
// misconfigured PS1 is a fatal error (§10.2), since the prompt probe
// depends on its expansion byte-for-byte.
func LoadClientConfig() (ClientConfig, error) {
	port, err := envInt(EnvLlamaPort, DefaultPort)
	if err != nil {
		return ClientConfig{}, err
	}
	timeout, err := envDuration(EnvExitTimeout, DefaultExitTimeout)
	if err != nil {
		return ClientConfig{}, err
	}
	killTimeout, err := envDuration(EnvKillTimeout, DefaultKillTimeout)
	if err != nil {
		return ClientConfig{}, err
	}
	reconnect, err := envDuration(EnvReconnectDelay, DefaultReconnectDelay)
	if err != nil {
		return ClientConfig{}, err
	}

	ps1 := envString(EnvPS1, DefaultPS1)
	if err := validatePS1Template(ps1); err != nil {
		return ClientConfig{}, err
	}

	return ClientConfig{
		Host:           "host.docker.internal",
		Port:           port,
		ExitTimeout:    timeout,
		KillTimeout:    killTimeout,
		ReconnectDelay: reconnect,
		PS1:            ps1,
		LogLevel:       envString(EnvLogLevel, "info"),
	}, nil
}

// validatePS1Template rejects a PS1 template that does not contain the
// components the executor needs to reconstruct `$? \u@\h:\w {#|$} `.
// This cannot fully verify bash's @P expansion ahead of time (that
// requires a running shell), but it catches the common misconfiguration
// of an operator overriding PS1 with something unrelated.
func validatePS1Template(ps1 string) error {
	required := []string{`$?`, `\u`, `\h`, `\w`}
	for _, token := range required {
		if !strings.Contains(ps1, token) {
			return &ErrInvalidConfig{
				Field:  EnvPS1,
				Reason: fmt.Sprintf("missing required token %q", token),
			}
		}
	}
	return nil
}

func envString(name, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return def
}

func envBool(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	return v == "1" || v == "true" || v == "TRUE" || v == "True"
}

func envInt(name string, def int) (int, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ErrInvalidConfig{Field: name, Reason: err.Error()}
	}
	return n, nil
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def, nil
	}
	seconds, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &ErrInvalidConfig{Field: name, Reason: err.Error()}
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// GenerationConfig is the structured options object the operator may
// write to /app/config.json to reconfigure generation (§4.3.1, §6).
// Only the fields below are kept; any other key in the file is dropped
// when it is decoded, and the Compactor hands the decoded struct to the
// Generator.
type GenerationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Seed        *int     `json:"seed,omitempty"`
}

// ParseGenerationConfig validates that data is well-formed JSON matching
// GenerationConfig's shape. An invalid config yields nil rather than an
// error: the caller logs it at debug level and proceeds with no override.
func ParseGenerationConfig(data []byte) *GenerationConfig {
	var cfg GenerationConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil
	}
	return &cfg
}
