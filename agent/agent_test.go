package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/logging"
	"github.com/osok/agent-patterns/session"
)

// MockAgent for testing composite agents.
type MockAgent struct {
	mock.Mock
	name string
}

func NewMockAgent(name string) *MockAgent {
	return &MockAgent{name: name}
}

func (m *MockAgent) Name() string        { return m.name }
func (m *MockAgent) Description() string { return "mock agent" }

func (m *MockAgent) Run(runCtx *core.RunContext) error {
	args := m.Called(runCtx)
	return args.Error(0)
}

func (m *MockAgent) Start(runCtx *core.RunContext) error {
	args := m.Called(runCtx)
	return args.Error(0)
}

func (m *MockAgent) Stop(runCtx *core.RunContext) error {
	args := m.Called(runCtx)
	return args.Error(0)
}

func (m *MockAgent) SetSubAgents(children ...core.Agent) error { return nil }
func (m *MockAgent) SubAgents() []core.Agent                   { return nil }
func (m *MockAgent) Parent() core.Agent                        { return nil }
func (m *MockAgent) FindAgent(string) core.Agent               { return nil }

// funcAgent runs an arbitrary function, for tests that need real behavior.
type funcAgent struct {
	BaseAgent
	fn func(*core.RunContext) error
}

func newFuncAgent(name string, fn func(*core.RunContext) error) *funcAgent {
	return &funcAgent{BaseAgent: NewBaseAgent(name), fn: fn}
}

func (a *funcAgent) Run(rc *core.RunContext) error { return a.fn(rc) }

func newAgentRunContext(t *testing.T) *core.RunContext {
	rc, _ := newAgentRunContextWithEmit(t)
	return rc
}

func newAgentRunContextWithEmit(t *testing.T) (*core.RunContext, chan core.Event) {
	t.Helper()
	store := session.NewInMemoryStore()
	sess, err := store.Create("sess")
	require.NoError(t, err)
	emit := make(chan core.Event, 100)
	rc := core.NewRunContext(context.Background(), "sess", "run",
		core.AgentInfo{Name: "root", Type: "test"}, core.NewUserText("hi"), 0,
		emit, nil, sess, store, nil, nil, logging.NoOpLogger{})
	return rc, emit
}

func TestBaseAgent_StartStop(t *testing.T) {
	base := NewBaseAgent("a")
	rc := newAgentRunContext(t)

	require.NoError(t, base.Start(rc))
	assert.Error(t, base.Start(rc), "double start must fail")
	require.NoError(t, base.Stop(rc))
	assert.Error(t, base.Stop(rc), "double stop must fail")
}

func TestBaseAgent_Hierarchy(t *testing.T) {
	root := newFuncAgent("root", func(*core.RunContext) error { return nil })
	child := newFuncAgent("child", func(*core.RunContext) error { return nil })
	grandchild := newFuncAgent("grandchild", func(*core.RunContext) error { return nil })

	require.NoError(t, child.SetSubAgents(grandchild))
	require.NoError(t, root.SetSubAgents(child))

	assert.Len(t, root.SubAgents(), 1)
	assert.NotNil(t, child.Parent())
	assert.Equal(t, "root", child.Parent().Name())

	found := root.FindAgent("grandchild")
	require.NotNil(t, found)
	assert.Equal(t, "grandchild", found.Name())

	assert.Nil(t, root.FindAgent("nobody"))
}

func TestBaseAgent_SetSubAgentsDetachesPrevious(t *testing.T) {
	root := newFuncAgent("root", func(*core.RunContext) error { return nil })
	first := newFuncAgent("first", func(*core.RunContext) error { return nil })
	second := newFuncAgent("second", func(*core.RunContext) error { return nil })

	require.NoError(t, root.SetSubAgents(first))
	require.NoError(t, root.SetSubAgents(second))

	assert.Nil(t, first.Parent(), "replaced child must be detached")
	assert.Len(t, root.SubAgents(), 1)
}

func TestBuildBranchPath(t *testing.T) {
	assert.Equal(t, "a", buildBranchPath("", "a"))
	assert.Equal(t, "a", buildBranchPath("a", ""))
	assert.Equal(t, "a.b", buildBranchPath("a", "b"))
}
