package shellmind

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestControlMessageRoundTrip(t *testing.T) {
	cases := []ControlMessage{SynMessage{}, AckMessage{}, FinMessage{}, NopMessage{}}
	for _, want := range cases {
		data, err := json.Marshal(want)
		require.NoError(t, err)
		got, err := ParseControlMessage(data)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestControlMessageUnknownKind(t *testing.T) {
	_, err := ParseControlMessage([]byte(`{"kind":"reset"}`))
	require.ErrorIs(t, err, ErrValidation)
}
