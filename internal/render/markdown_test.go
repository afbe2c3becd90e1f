package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdown_ToHTML(t *testing.T) {
	m := NewMarkdown()

	out, err := m.ToHTML("**Printer** is down\n\n- step one\n- step two")
	require.NoError(t, err)

	assert.Contains(t, out, "<strong>Printer</strong>")
	assert.Contains(t, out, "<li>step one</li>")
}

func TestMarkdown_StripsScripts(t *testing.T) {
	m := NewMarkdown()

	out := m.MustHTML("hello <script>alert(1)</script> [x](javascript:alert(1))")

	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "javascript:")
	assert.Contains(t, out, "hello")
}
