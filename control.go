package shellmind

import (
	"encoding/json"
	"fmt"
)

// ControlMessage is one of the four handshake/liveness messages
// exchanged before (and, for Fin, during) the command dispatch loop
// (§3, §4.5). Each is encoded as an explicit-tag object, matching the
// choice documented for Command/Result in §4.2.
type ControlMessage interface {
	controlKind() string
}

// SynMessage opens a handshake (§4.5.1).
type SynMessage struct{}

// AckMessage acknowledges a Syn, or the Ack that follows it, completing
// the three-way handshake (§4.5.1).
type AckMessage struct{}

// FinMessage is an in-band close request from either peer (§4.5.4).
type FinMessage struct{}

// NopMessage is a liveness probe the server may receive instead of a
// Syn; the server closes the connection immediately without an Ack
// (§4.5.1).
type NopMessage struct{}

func (SynMessage) controlKind() string { return "syn" }
func (AckMessage) controlKind() string { return "ack" }
func (FinMessage) controlKind() string { return "fin" }
func (NopMessage) controlKind() string { return "nop" }

type controlEnvelope struct {
	Kind string `json:"kind"`
}

func (m SynMessage) MarshalJSON() ([]byte, error) { return json.Marshal(controlEnvelope{"syn"}) }
func (m AckMessage) MarshalJSON() ([]byte, error) { return json.Marshal(controlEnvelope{"ack"}) }
func (m FinMessage) MarshalJSON() ([]byte, error) { return json.Marshal(controlEnvelope{"fin"}) }
func (m NopMessage) MarshalJSON() ([]byte, error) { return json.Marshal(controlEnvelope{"nop"}) }

// ParseControlMessage decodes a control message by its "kind" tag.
func ParseControlMessage(data []byte) (ControlMessage, error) {
	var env controlEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode control envelope: %w", err)
	}
	switch env.Kind {
	case "syn":
		return SynMessage{}, nil
	case "ack":
		return AckMessage{}, nil
	case "fin":
		return FinMessage{}, nil
	case "nop":
		return NopMessage{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown control kind %q", ErrValidation, env.Kind)
	}
}
