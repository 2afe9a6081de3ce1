package shellmind

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateAndParseAcceptsValidCommandList(t *testing.T) {
	schema, err := newResolvedCommandListSchema()
	require.NoError(t, err)

	cmds, err := schema.validateAndParse(`[{"kind":"shell","command":"ls -la"},{"kind":"file_read","file":"/tmp/x"}]`)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	require.Equal(t, "shell", cmds[0].CommandType())
	require.Equal(t, "file_read", cmds[1].CommandType())
}

func TestValidateAndParseRejectsMalformedJSON(t *testing.T) {
	schema, err := newResolvedCommandListSchema()
	require.NoError(t, err)

	_, err = schema.validateAndParse(`not json`)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrValidation)
}

func TestValidateAndParseRejectsMissingKind(t *testing.T) {
	schema, err := newResolvedCommandListSchema()
	require.NoError(t, err)

	_, err = schema.validateAndParse(`[{"command":"ls"}]`)
	require.Error(t, err)
}
