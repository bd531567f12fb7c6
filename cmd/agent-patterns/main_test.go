package main

import (
	"io"
	"os"
	"testing"

	"github.com/osok/agent-patterns/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	fn()
	require.NoError(t, w.Close())
	os.Stdout = old
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestRenderQuietPrintsOnlyAnswerText(t *testing.T) {
	cmd := &RunCmd{Quiet: true}
	step := core.NewStepEvent("planner", "outline", map[string]any{"sections": 3})
	answer := core.NewMessageEvent("planner", "forty-two")

	out := captureStdout(t, func() {
		cmd.render(step)
		cmd.render(answer)
	})

	assert.Equal(t, "forty-two\n", out)
}

func TestRenderStepEvent(t *testing.T) {
	cmd := &RunCmd{}
	step := core.NewStepEvent("planner", "outline", map[string]any{"sections": 3})

	out := captureStdout(t, func() {
		cmd.render(step)
	})

	assert.Equal(t, "[planner] outline\n", out)
}
