package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"STAGE", "NEXT"}, [][]string{
		{"NEW", "QUALIFYING"},
		{"CLOSED_WON"},
	})
	lines := strings.Split(out, "\n")
	assert.True(t, strings.HasPrefix(lines[0], "╭"))
	assert.Contains(t, out, "STAGE")
	assert.Contains(t, out, "QUALIFYING")
	assert.Contains(t, out, "CLOSED_WON")
	assert.Len(t, lines, 6)

	assert.Empty(t, renderTable(nil, [][]string{{"x"}}))
}
