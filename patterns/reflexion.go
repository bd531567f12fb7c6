package patterns

import (
	"fmt"
	"strings"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/memory"
	"github.com/osok/agent-patterns/model"
)

// DefaultReflexionMaxTrials bounds how many attempts a Reflexion run makes.
const DefaultReflexionMaxTrials = 3

// ReflexionSuccess is the marker the evaluator emits for a passing attempt.
const ReflexionSuccess = "SUCCESS"

const reflexionAttemptInstructions = `You solve the task. If reflections on previous failed attempts are
provided, use them to avoid repeating the same mistakes.`

const reflexionEvaluateInstructions = `You are an evaluator. Judge whether the attempt solves the task.
If it does, respond with the single word SUCCESS.
Otherwise respond with FAILURE followed by a short explanation of what is wrong.`

const reflexionReflectInstructions = `You are reflecting on a failed attempt. Write a short first-person
lesson describing what went wrong and what to do differently next time.`

// ReflexionOptions configures a Reflexion agent.
type ReflexionOptions struct {
	OutputKey string

	// MaxTrials bounds attempt/reflect cycles.
	MaxTrials int
}

// Reflexion runs bounded trials of attempt, self-evaluation and verbal
// reflection. Reflections are stored as episodic memory and fed into the
// next attempt, so lessons persist across runs sharing a session.
type Reflexion struct {
	*BasePattern
	maxTrials int
}

// NewReflexion creates a Reflexion agent driven by m.
func NewReflexion(name string, m model.Model, optFns ...func(o *ReflexionOptions)) *Reflexion {
	opts := ReflexionOptions{MaxTrials: DefaultReflexionMaxTrials}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxTrials <= 0 {
		opts.MaxTrials = DefaultReflexionMaxTrials
	}

	return &Reflexion{
		BasePattern: newBasePattern(name, m, nil, opts.OutputKey),
		maxTrials:   opts.MaxTrials,
	}
}

// Run attempts the task up to MaxTrials times, reflecting between trials.
func (a *Reflexion) Run(runCtx *core.RunContext) error {
	task := taskText(runCtx)

	reflections := a.recallReflections(runCtx, task)
	lastAttempt := ""

	for trial := 1; trial <= a.maxTrials; trial++ {
		attempt, err := a.generate(runCtx, reflexionAttemptInstructions, attemptPrompt(task, reflections))
		if err != nil {
			return fmt.Errorf("reflexion trial %d: %w", trial, err)
		}
		lastAttempt = strings.TrimSpace(attempt)

		verdict, err := a.generate(runCtx, reflexionEvaluateInstructions,
			fmt.Sprintf("Task: %s\n\nAttempt:\n%s", task, lastAttempt))
		if err != nil {
			return fmt.Errorf("reflexion evaluate trial %d: %w", trial, err)
		}
		verdict = strings.TrimSpace(verdict)
		passed := strings.HasPrefix(verdict, ReflexionSuccess)

		if err := a.emitStep(runCtx, "trial", map[string]any{
			"trial":   trial,
			"attempt": lastAttempt,
			"verdict": verdict,
			"passed":  passed,
		}); err != nil {
			return err
		}

		if passed {
			return a.emitFinal(runCtx, lastAttempt)
		}

		if trial == a.maxTrials {
			break
		}

		reflection, err := a.generate(runCtx, reflexionReflectInstructions,
			fmt.Sprintf("Task: %s\n\nFailed attempt:\n%s\n\nEvaluation:\n%s", task, lastAttempt, verdict))
		if err != nil {
			return fmt.Errorf("reflexion reflect trial %d: %w", trial, err)
		}
		reflection = strings.TrimSpace(reflection)
		reflections = append(reflections, reflection)

		if err := runCtx.StoreMemory(reflection, map[string]any{
			memory.TypeMetadataKey: memory.Episodic,
			"task":                 task,
			"trial":                trial,
		}); err != nil {
			runCtx.LogWarn("reflexion.memory.store", "error", err)
		}
	}

	// Out of trials; the last attempt is the best available answer.
	return a.emitFinal(runCtx, lastAttempt)
}

// recallReflections loads episodic lessons from earlier runs on similar
// tasks so trials do not start from scratch.
func (a *Reflexion) recallReflections(runCtx *core.RunContext, task string) []string {
	results, err := runCtx.SearchMemory(task, 5)
	if err != nil {
		runCtx.LogWarn("reflexion.memory.search", "error", err)
		return nil
	}

	var reflections []string
	for _, r := range results {
		if memory.TypeOf(r.Metadata) == memory.Episodic {
			reflections = append(reflections, r.Content)
		}
	}
	return reflections
}

func attemptPrompt(task string, reflections []string) string {
	var b strings.Builder
	b.WriteString("Task: " + task + "\n")
	if len(reflections) > 0 {
		b.WriteString("\nReflections on previous attempts:\n")
		for i, r := range reflections {
			fmt.Fprintf(&b, "%d. %s\n", i+1, r)
		}
	}
	return b.String()
}
