package agent

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osok/agent-patterns/core"
)

func TestParallelAgent_RunsAllChildren(t *testing.T) {
	var count atomic.Int32
	children := []core.Agent{
		newFuncAgent("a", func(*core.RunContext) error { count.Add(1); return nil }),
		newFuncAgent("b", func(*core.RunContext) error { count.Add(1); return nil }),
		newFuncAgent("c", func(*core.RunContext) error { count.Add(1); return nil }),
	}

	par := NewParallelAgent("fan-out", children)
	require.NoError(t, par.Run(newAgentRunContext(t)))
	assert.Equal(t, int32(3), count.Load())
}

func TestParallelAgent_BranchIsolation(t *testing.T) {
	var mu sync.Mutex
	branches := map[string]bool{}
	record := func(name string) func(*core.RunContext) error {
		return func(rc *core.RunContext) error {
			mu.Lock()
			defer mu.Unlock()
			branches[rc.Branch] = true
			return nil
		}
	}
	children := []core.Agent{
		newFuncAgent("a", record("a")),
		newFuncAgent("b", record("b")),
	}

	par := NewParallelAgent("fan-out", children)
	rc := newAgentRunContext(t)
	require.NoError(t, par.Run(rc))

	assert.True(t, branches["fan-out.a"])
	assert.True(t, branches["fan-out.b"])
	assert.Empty(t, rc.Branch, "parent branch must stay untouched")
}

func TestParallelAgent_FirstErrorReturned(t *testing.T) {
	boom := errors.New("boom")
	var completed atomic.Int32
	children := []core.Agent{
		newFuncAgent("bad", func(*core.RunContext) error { return boom }),
		newFuncAgent("good", func(*core.RunContext) error {
			time.Sleep(10 * time.Millisecond)
			completed.Add(1)
			return nil
		}),
	}

	par := NewParallelAgent("fan-out", children)
	err := par.Run(newAgentRunContext(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), completed.Load(), "siblings run to completion")
}

func TestParallelAgent_MaxParallel(t *testing.T) {
	var running, peak atomic.Int32
	child := func(name string) core.Agent {
		return newFuncAgent(name, func(*core.RunContext) error {
			cur := running.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return nil
		})
	}
	children := []core.Agent{child("a"), child("b"), child("c"), child("d")}

	par := NewParallelAgent("fan-out", children, WithMaxParallel(2))
	require.NoError(t, par.Run(newAgentRunContext(t)))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}
