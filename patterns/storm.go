package patterns

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/model"
)

// STORM defaults.
const (
	DefaultSTORMMaxParallel  = 3
	DefaultSTORMPerspectives = 3
)

const stormOutlineInstructions = `You are outlining an article on the given topic. Respond with the
section titles only, one per line, numbered like "1. <title>".`

const stormPerspectivesInstructions = `You enumerate research perspectives for an article topic. Each
perspective is a distinct angle an expert would investigate. Respond with
at most %d perspectives, one per line, numbered like "1. <perspective>".`

const stormResearchInstructions = `You are a researcher investigating a topic from one specific
perspective. Produce concise factual notes useful for writing an article.`

const stormWriteInstructions = `You write one section of an article. Use the research notes. Respond
with the section text only, without repeating the section title.`

// STORMOptions configures a STORM agent.
type STORMOptions struct {
	OutputKey string

	// MaxParallel bounds concurrent research calls.
	MaxParallel int

	// Perspectives is how many research perspectives to request.
	Perspectives int
}

// STORM writes a grounded article: it outlines the topic, derives research
// perspectives, researches each perspective concurrently with bounded
// parallelism, then writes the article section by section from the
// gathered notes.
type STORM struct {
	*BasePattern
	maxParallel  int
	perspectives int
}

// NewSTORM creates a STORM agent driven by m.
func NewSTORM(name string, m model.Model, optFns ...func(o *STORMOptions)) *STORM {
	opts := STORMOptions{
		MaxParallel:  DefaultSTORMMaxParallel,
		Perspectives: DefaultSTORMPerspectives,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultSTORMMaxParallel
	}
	if opts.Perspectives <= 0 {
		opts.Perspectives = DefaultSTORMPerspectives
	}

	return &STORM{
		BasePattern:  newBasePattern(name, m, nil, opts.OutputKey),
		maxParallel:  opts.MaxParallel,
		perspectives: opts.Perspectives,
	}
}

// Run outlines, researches concurrently, then writes the article.
func (a *STORM) Run(runCtx *core.RunContext) error {
	topic := taskText(runCtx)

	outlineText, err := a.generate(runCtx, stormOutlineInstructions, "Topic: "+topic)
	if err != nil {
		return fmt.Errorf("storm outline: %w", err)
	}
	sections := parsePlanSteps(outlineText)
	if len(sections) == 0 {
		return fmt.Errorf("storm outline: no sections parsed")
	}

	perspectivesText, err := a.generate(runCtx,
		fmt.Sprintf(stormPerspectivesInstructions, a.perspectives), "Topic: "+topic)
	if err != nil {
		return fmt.Errorf("storm perspectives: %w", err)
	}
	perspectives := parsePlanSteps(perspectivesText)
	if len(perspectives) == 0 {
		return fmt.Errorf("storm perspectives: none parsed")
	}
	if len(perspectives) > a.perspectives {
		perspectives = perspectives[:a.perspectives]
	}

	sectionsData := make([]any, len(sections))
	for i, s := range sections {
		sectionsData[i] = s
	}
	perspectivesData := make([]any, len(perspectives))
	for i, p := range perspectives {
		perspectivesData[i] = p
	}
	if err := a.emitStep(runCtx, "outline", map[string]any{
		"sections":     sectionsData,
		"perspectives": perspectivesData,
	}); err != nil {
		return err
	}

	notes, err := a.research(runCtx, topic, perspectives)
	if err != nil {
		return fmt.Errorf("storm research: %w", err)
	}

	article, err := a.write(runCtx, topic, sections, notes)
	if err != nil {
		return fmt.Errorf("storm write: %w", err)
	}

	return a.emitFinal(runCtx, article)
}

// research investigates every perspective concurrently, bounded by
// MaxParallel, and returns notes keyed in perspective order.
func (a *STORM) research(runCtx *core.RunContext, topic string, perspectives []string) ([]string, error) {
	notes := make([]string, len(perspectives))
	var mu sync.Mutex

	type researched struct {
		index       int
		perspective string
	}
	done := make(chan researched, len(perspectives))

	g, _ := errgroup.WithContext(runCtx.Context)
	g.SetLimit(a.maxParallel)

	for i, perspective := range perspectives {
		g.Go(func() error {
			prompt := fmt.Sprintf("Topic: %s\nPerspective: %s", topic, perspective)
			result, err := a.generate(runCtx, stormResearchInstructions, prompt)
			if err != nil {
				return fmt.Errorf("perspective %q: %w", perspective, err)
			}

			mu.Lock()
			notes[i] = strings.TrimSpace(result)
			mu.Unlock()

			done <- researched{index: i, perspective: perspective}
			return nil
		})
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- g.Wait()
		close(done)
	}()

	// Step events are emitted from this goroutine so the persist/resume
	// handshake stays serial.
	for r := range done {
		if err := a.emitStep(runCtx, "research", map[string]any{
			"perspective": r.perspective,
			"index":       r.index,
		}); err != nil {
			return nil, err
		}
	}

	if err := <-waitErr; err != nil {
		return nil, err
	}
	return notes, nil
}

// write produces the article section by section from the notes.
func (a *STORM) write(runCtx *core.RunContext, topic string, sections, notes []string) (string, error) {
	var allNotes strings.Builder
	for i, n := range notes {
		fmt.Fprintf(&allNotes, "Notes %d:\n%s\n\n", i+1, n)
	}

	var article strings.Builder
	article.WriteString("# " + topic + "\n")

	for i, section := range sections {
		prompt := fmt.Sprintf("Topic: %s\nSection: %s\n\nResearch notes:\n%s", topic, section, allNotes.String())
		text, err := a.generate(runCtx, stormWriteInstructions, prompt)
		if err != nil {
			return "", fmt.Errorf("section %d (%s): %w", i+1, section, err)
		}

		fmt.Fprintf(&article, "\n## %s\n\n%s\n", section, strings.TrimSpace(text))

		if err := a.emitStep(runCtx, "section", map[string]any{
			"section": section,
			"index":   i + 1,
		}); err != nil {
			return "", err
		}
	}

	return article.String(), nil
}
