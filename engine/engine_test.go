package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osok/agent-patterns/agent"
	"github.com/osok/agent-patterns/core"
)

type testAgent struct {
	agent.BaseAgent
	run func(runCtx *core.RunContext) error
}

func newTestAgent(name string, run func(runCtx *core.RunContext) error) *testAgent {
	return &testAgent{BaseAgent: agent.NewBaseAgent(name), run: run}
}

func (a *testAgent) Run(runCtx *core.RunContext) error { return a.run(runCtx) }

// emitFinal sends a non-partial message and blocks until the engine has
// persisted it, mirroring how flows hand events off.
func emitFinal(runCtx *core.RunContext, ev core.Event) error {
	if err := runCtx.EmitEvent(ev); err != nil {
		return err
	}
	return runCtx.WaitForResume()
}

func TestEngine_RunSync_CollectsAndPersists(t *testing.T) {
	e := New()
	e.Register(newTestAgent("echo", func(runCtx *core.RunContext) error {
		ev := core.NewMessageEvent("echo", "pong")
		ev.RunID = runCtx.RunID
		ev.Actions.StateDelta = map[string]any{"last_reply": "pong"}
		return emitFinal(runCtx, ev)
	}))

	runID, events, err := e.RunSync(context.Background(), "sess", "echo", core.NewUserText("ping"))
	require.NoError(t, err)
	require.NotEmpty(t, runID)
	require.Len(t, events, 1)
	assert.Equal(t, "pong", events[0].Text())

	sess, err := e.GetSession("sess")
	require.NoError(t, err)

	// User input plus the agent reply are in history.
	history := sess.GetEvents()
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Author)
	assert.Equal(t, "echo", history[1].Author)

	v, ok := sess.GetState("last_reply")
	require.True(t, ok)
	assert.Equal(t, "pong", v)
}

func TestEngine_Run_AgentNotFound(t *testing.T) {
	e := New()

	_, _, _, err := e.Run(context.Background(), "sess", "missing", core.NewUserText("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestEngine_Run_StreamsEvents(t *testing.T) {
	e := New()
	e.Register(newTestAgent("streamer", func(runCtx *core.RunContext) error {
		for i := 0; i < 3; i++ {
			ev := core.NewMessageEvent("streamer", fmt.Sprintf("chunk %d", i))
			ev.RunID = runCtx.RunID
			if err := emitFinal(runCtx, ev); err != nil {
				return err
			}
		}
		return nil
	}))

	_, eventsCh, errorsCh, err := e.Run(context.Background(), "sess", "streamer", core.NewUserText("go"))
	require.NoError(t, err)

	var got []string
	for ev := range eventsCh {
		got = append(got, ev.Text())
	}
	assert.Equal(t, []string{"chunk 0", "chunk 1", "chunk 2"}, got)
	assert.NoError(t, <-errorsCh)
}

func TestEngine_RunSync_AgentError(t *testing.T) {
	e := New()
	e.Register(newTestAgent("broken", func(runCtx *core.RunContext) error {
		return errors.New("model unavailable")
	}))

	_, _, err := e.RunSync(context.Background(), "sess", "broken", core.NewUserText("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestEngine_TransferHandoff(t *testing.T) {
	e := New()
	target := "specialist"
	e.Register(newTestAgent("triage", func(runCtx *core.RunContext) error {
		ev := core.NewMessageEvent("triage", "handing off")
		ev.RunID = runCtx.RunID
		ev.Actions.TransferToAgent = &target
		return emitFinal(runCtx, ev)
	}))
	e.Register(newTestAgent("specialist", func(runCtx *core.RunContext) error {
		ev := core.NewMessageEvent("specialist", "resolved")
		ev.RunID = runCtx.RunID
		return emitFinal(runCtx, ev)
	}))

	_, events, err := e.RunSync(context.Background(), "sess", "triage", core.NewUserText("help"))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "triage", events[0].Author)
	assert.Equal(t, "specialist", events[1].Author)
	assert.Equal(t, "resolved", events[1].Text())
}

func TestEngine_TransferTargetNotFound(t *testing.T) {
	e := New()
	target := "ghost"
	e.Register(newTestAgent("triage", func(runCtx *core.RunContext) error {
		ev := core.NewMessageEvent("triage", "handing off")
		ev.RunID = runCtx.RunID
		ev.Actions.TransferToAgent = &target
		return emitFinal(runCtx, ev)
	}))

	_, _, err := e.RunSync(context.Background(), "sess", "triage", core.NewUserText("help"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestEngine_TransferLimit(t *testing.T) {
	cfg := DefaultConfig
	cfg.MaxTransfers = 2
	e := New(WithConfig(cfg))

	target := "loop"
	e.Register(newTestAgent("loop", func(runCtx *core.RunContext) error {
		ev := core.NewMessageEvent("loop", "again")
		ev.RunID = runCtx.RunID
		ev.Actions.TransferToAgent = &target
		return emitFinal(runCtx, ev)
	}))

	_, _, err := e.RunSync(context.Background(), "sess", "loop", core.NewUserText("go"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transfer limit")
}

func TestEngine_Cancel(t *testing.T) {
	e := New()
	started := make(chan struct{})
	e.Register(newTestAgent("sleeper", func(runCtx *core.RunContext) error {
		close(started)
		<-runCtx.Done()
		return runCtx.Err()
	}))

	runID, eventsCh, errorsCh, err := e.Run(context.Background(), "sess", "sleeper", core.NewUserText("hi"))
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("agent never started")
	}

	e.Cancel(runID)

	for range eventsCh {
	}
	if runErr := <-errorsCh; runErr != nil {
		assert.Contains(t, runErr.Error(), "context canceled")
	}

	// Cancelling again or with an unknown ID is a no-op.
	e.Cancel(runID)
	e.Cancel("unknown")
}

func TestEngine_SessionIsolation(t *testing.T) {
	e := New()
	e.Register(newTestAgent("writer", func(runCtx *core.RunContext) error {
		ev := core.NewMessageEvent("writer", "ok")
		ev.RunID = runCtx.RunID
		ev.Actions.StateDelta = map[string]any{"seen": runCtx.SessionID}
		return emitFinal(runCtx, ev)
	}))

	_, _, err := e.RunSync(context.Background(), "s1", "writer", core.NewUserText("a"))
	require.NoError(t, err)
	_, _, err = e.RunSync(context.Background(), "s2", "writer", core.NewUserText("b"))
	require.NoError(t, err)

	s1, err := e.GetSession("s1")
	require.NoError(t, err)
	v, _ := s1.GetState("seen")
	assert.Equal(t, "s1", v)

	s2, err := e.GetSession("s2")
	require.NoError(t, err)
	v, _ = s2.GetState("seen")
	assert.Equal(t, "s2", v)
}
