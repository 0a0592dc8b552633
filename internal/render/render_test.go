package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdown_NotATerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Markdown(&buf, "# Verdict\n\nThe proposition wins."))
	assert.Equal(t, "# Verdict\n\nThe proposition wins.\n", buf.String())
}
