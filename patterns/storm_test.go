package patterns

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/engine"
	"github.com/osok/agent-patterns/model"
)

func TestSTORM_OutlinesResearchesAndWrites(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	// MaxParallel of one keeps the research calls in perspective order, so
	// the scripted responses pop deterministically.
	m.Queue(
		"1. History\n2. Impact",
		"1. An economist\n2. An engineer",
		"notes from the economist",
		"notes from the engineer",
		"The history section text.",
		"The impact section text.",
	)

	a := NewSTORM("storm", m, func(o *STORMOptions) {
		o.OutputKey = "article"
		o.MaxParallel = 1
		o.Perspectives = 2
	})

	events, sess := runPattern(t, engine.New(), a, "container shipping")

	v, ok := sess.GetState("article")
	require.True(t, ok)
	article, ok := v.(string)
	require.True(t, ok)

	assert.Contains(t, article, "# container shipping")
	assert.Contains(t, article, "## History")
	assert.Contains(t, article, "The history section text.")
	assert.Contains(t, article, "## Impact")
	assert.Contains(t, article, "The impact section text.")

	assert.Equal(t, []string{"outline", "research", "research", "section", "section"}, stepNames(events))
	assert.Equal(t, 6, m.Calls())
}

func TestSTORM_CapsPerspectives(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	// Model returns three perspectives; only the first two are researched.
	m.Queue(
		"1. Overview",
		"1. First\n2. Second\n3. Third",
		"first notes",
		"second notes",
		"overview text",
	)

	a := NewSTORM("storm", m, func(o *STORMOptions) {
		o.MaxParallel = 1
		o.Perspectives = 2
	})

	_, sess := runPattern(t, engine.New(), a, "tides")

	_, ok := sess.GetState(DefaultOutputKey)
	require.True(t, ok)
	assert.Equal(t, 5, m.Calls())
}

func TestSTORM_EmptyOutlineIsError(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Queue("no numbered lines here")

	a := NewSTORM("storm", m)

	e := engine.New()
	e.Register(a)

	_, _, err := e.RunSync(context.Background(), "sess", "storm", core.NewUserText("tides"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sections parsed")
}
