package patterns

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/model"
	"github.com/osok/agent-patterns/tool"
)

// Compiler defaults.
const (
	DefaultCompilerMaxParallel = 4
	DefaultCompilerMaxReplans  = 2
)

const compilerPlanInstructions = `You are a planner that compiles a task into a JSON array of tool calls
forming a dependency graph.

Available tools:
%s
Respond with a JSON array only. Each element:
{"id": <int>, "tool": "<tool name>", "args": {<arguments>}, "depends_on": [<ids>]}

An argument string may reference the result of a dependency as ${<id>}.
Independent tasks must not depend on each other so they can run in
parallel.`

const compilerJoinInstructions = `You are a joiner. Given the task and the executed tool results, either
answer or request another planning round.

To answer: FINISH: <final answer>
To replan: REPLAN: <what additional information is needed>`

var compilerRefRe = regexp.MustCompile(`\$\{(\d+)\}`)

// compilerTask is one node of the planned DAG.
type compilerTask struct {
	ID        int            `json:"id"`
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
	DependsOn []int          `json:"depends_on"`
}

// CompilerOptions configures an LLM Compiler agent.
type CompilerOptions struct {
	Tools     []tool.Tool
	OutputKey string

	// MaxParallel bounds how many tool calls execute concurrently.
	MaxParallel int

	// MaxReplans bounds additional planning rounds the joiner may request.
	MaxReplans int
}

// Compiler implements the LLM Compiler pattern: a planner emits a task
// DAG, a scheduler executes it with maximum parallelism where every task
// starts the moment its dependencies finish, and a joiner either answers
// or requests replanning with the gathered results.
type Compiler struct {
	*BasePattern
	maxParallel int
	maxReplans  int
}

// NewCompiler creates an LLM Compiler agent driven by m.
func NewCompiler(name string, m model.Model, optFns ...func(o *CompilerOptions)) *Compiler {
	opts := CompilerOptions{
		MaxParallel: DefaultCompilerMaxParallel,
		MaxReplans:  DefaultCompilerMaxReplans,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultCompilerMaxParallel
	}
	if opts.MaxReplans < 0 {
		opts.MaxReplans = 0
	}

	return &Compiler{
		BasePattern: newBasePattern(name, m, opts.Tools, opts.OutputKey),
		maxParallel: opts.MaxParallel,
		maxReplans:  opts.MaxReplans,
	}
}

// Run plans, schedules and joins, replanning up to the configured bound.
func (a *Compiler) Run(runCtx *core.RunContext) error {
	task := taskText(runCtx)
	guidance := ""
	var allResults []string

	for round := 0; ; round++ {
		tasks, err := a.plan(runCtx, task, guidance, allResults)
		if err != nil {
			return fmt.Errorf("compiler plan round %d: %w", round+1, err)
		}

		results, err := a.schedule(runCtx, tasks)
		if err != nil {
			return fmt.Errorf("compiler schedule round %d: %w", round+1, err)
		}

		for _, t := range tasks {
			allResults = append(allResults, fmt.Sprintf("%s(%d): %s", t.Tool, t.ID, results[t.ID]))
		}

		verdict, err := a.generate(runCtx, compilerJoinInstructions, joinPrompt(task, allResults))
		if err != nil {
			return fmt.Errorf("compiler join round %d: %w", round+1, err)
		}
		verdict = strings.TrimSpace(verdict)

		if answer, ok := strings.CutPrefix(verdict, "FINISH:"); ok {
			return a.emitFinal(runCtx, strings.TrimSpace(answer))
		}

		guidance = strings.TrimSpace(strings.TrimPrefix(verdict, "REPLAN:"))
		if round >= a.maxReplans {
			// Replan budget exhausted; the verdict text is the best answer
			// the joiner could produce.
			return a.emitFinal(runCtx, guidance)
		}
	}
}

// plan asks the planner for a task DAG and validates it.
func (a *Compiler) plan(runCtx *core.RunContext, task, guidance string, prior []string) ([]compilerTask, error) {
	prompt := "Task: " + task
	if guidance != "" {
		prompt += "\n\nResults so far:\n" + strings.Join(prior, "\n")
		prompt += "\n\nReplan guidance: " + guidance
	}

	planText, err := a.generate(runCtx, fmt.Sprintf(compilerPlanInstructions, a.toolCatalog()), prompt)
	if err != nil {
		return nil, err
	}

	tasks, err := parseCompilerPlan(planText)
	if err != nil {
		return nil, err
	}

	if err := validateDAG(tasks); err != nil {
		return nil, err
	}

	planData := make([]any, len(tasks))
	for i, t := range tasks {
		deps := make([]any, len(t.DependsOn))
		for j, d := range t.DependsOn {
			deps[j] = d
		}
		planData[i] = map[string]any{"id": t.ID, "tool": t.Tool, "args": t.Args, "depends_on": deps}
	}
	if err := a.emitStep(runCtx, "plan", map[string]any{"tasks": planData}); err != nil {
		return nil, err
	}

	return tasks, nil
}

// taskOutcome travels from scheduler workers to the coordinating loop so
// step events are emitted serially with the persist/resume handshake.
type taskOutcome struct {
	id     int
	tool   string
	result string
	err    error
}

// schedule executes the DAG. Every task has a done channel closed when it
// finishes; a task waits only on its dependencies' channels, so
// independent tasks run concurrently, bounded by a semaphore held just
// for the duration of the tool call.
func (a *Compiler) schedule(runCtx *core.RunContext, tasks []compilerTask) (map[int]string, error) {
	done := make(map[int]chan struct{}, len(tasks))
	for _, t := range tasks {
		done[t.ID] = make(chan struct{})
	}

	var mu sync.Mutex
	results := make(map[int]string, len(tasks))

	outcomes := make(chan taskOutcome, len(tasks))
	sem := make(chan struct{}, a.maxParallel)

	g, ctx := errgroup.WithContext(runCtx.Context)
	for _, t := range tasks {
		g.Go(func() error {
			for _, dep := range t.DependsOn {
				select {
				case <-done[dep]:
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			mu.Lock()
			args := resolveRefs(t.Args, results)
			mu.Unlock()

			result, err := a.callTool(runCtx, t.Tool, args)
			if err != nil {
				outcomes <- taskOutcome{id: t.ID, tool: t.Tool, err: err}
				return fmt.Errorf("task %d (%s): %w", t.ID, t.Tool, err)
			}

			mu.Lock()
			results[t.ID] = result
			mu.Unlock()
			close(done[t.ID])

			outcomes <- taskOutcome{id: t.ID, tool: t.Tool, result: result}
			return nil
		})
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- g.Wait()
		close(outcomes)
	}()

	for out := range outcomes {
		data := map[string]any{"id": out.id, "tool": out.tool}
		if out.err != nil {
			data["error"] = out.err.Error()
		} else {
			data["result"] = out.result
		}
		if err := a.emitStep(runCtx, "task_complete", data); err != nil {
			return nil, err
		}
	}

	if err := <-waitErr; err != nil {
		return nil, err
	}

	return results, nil
}

// resolveRefs substitutes ${id} references in string arguments with the
// referenced task results.
func resolveRefs(args map[string]any, results map[int]string) map[string]any {
	resolved := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok {
			resolved[k] = compilerRefRe.ReplaceAllStringFunc(s, func(ref string) string {
				var id int
				fmt.Sscanf(ref, "${%d}", &id)
				if r, ok := results[id]; ok {
					return r
				}
				return ref
			})
			continue
		}
		resolved[k] = v
	}
	return resolved
}

// parseCompilerPlan decodes the planner's JSON array, tolerating markdown
// code fences around it.
func parseCompilerPlan(planText string) ([]compilerTask, error) {
	text := strings.TrimSpace(planText)
	if i := strings.Index(text, "["); i >= 0 {
		if j := strings.LastIndex(text, "]"); j > i {
			text = text[i : j+1]
		}
	}

	var tasks []compilerTask
	if err := json.Unmarshal([]byte(text), &tasks); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("parse plan: empty task list")
	}
	return tasks, nil
}

// validateDAG rejects duplicate ids, unknown dependencies and cycles.
func validateDAG(tasks []compilerTask) error {
	indegree := make(map[int]int, len(tasks))
	dependents := make(map[int][]int, len(tasks))

	for _, t := range tasks {
		if _, dup := indegree[t.ID]; dup {
			return fmt.Errorf("duplicate task id %d", t.ID)
		}
		indegree[t.ID] = 0
	}

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if _, ok := indegree[dep]; !ok {
				return fmt.Errorf("task %d depends on unknown task %d", t.ID, dep)
			}
			if dep == t.ID {
				return fmt.Errorf("task %d depends on itself", t.ID)
			}
			indegree[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	// Kahn's algorithm; anything left with a positive indegree is on a cycle.
	var ready []int
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	visited := 0
	for len(ready) > 0 {
		id := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		visited++
		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if visited != len(tasks) {
		return fmt.Errorf("task graph contains a cycle")
	}
	return nil
}

func joinPrompt(task string, results []string) string {
	var b strings.Builder
	b.WriteString("Task: " + task + "\n\nTool results:\n")
	for _, r := range results {
		b.WriteString(r + "\n")
	}
	b.WriteString("\nDecide: FINISH or REPLAN.")
	return b.String()
}
