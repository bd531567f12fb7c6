package patterns

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/model"
)

// LATS defaults.
const (
	DefaultLATSMaxRollouts       = 8
	DefaultLATSNumCandidates     = 3
	DefaultLATSExplorationWeight = 1.4
	DefaultLATSSolutionThreshold = 0.8
)

const latsExpandInstructions = `You are exploring solution steps for a task. Given the reasoning
trajectory so far, propose the next step. If the trajectory already
solves the task, restate the complete solution prefixed with "SOLUTION:".`

const latsEvaluateInstructions = `You are a critic. Score how promising the reasoning trajectory is for
solving the task on a scale of 0 to 10, where 10 means the trajectory
contains a complete correct solution. Respond with "Score: <number>"
followed by a short justification.`

var latsScoreRe = regexp.MustCompile(`(?i)score:\s*(\d+(?:\.\d+)?)`)

// latsNode is one node of the search tree. Value accumulates normalized
// scores; UCT reads visits and value up the path after backpropagation.
type latsNode struct {
	parent   *latsNode
	children []*latsNode
	step     string
	score    float64
	visits   int
	valueSum float64
	solution bool
}

func (n *latsNode) uct(c float64) float64 {
	if n.visits == 0 {
		return math.Inf(1)
	}
	exploit := n.valueSum / float64(n.visits)
	explore := c * math.Sqrt(math.Log(float64(n.parent.visits))/float64(n.visits))
	return exploit + explore
}

// trajectory renders the steps from the root to this node.
func (n *latsNode) trajectory() []string {
	var steps []string
	for cur := n; cur != nil && cur.parent != nil; cur = cur.parent {
		steps = append(steps, cur.step)
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return steps
}

// LATSOptions configures a LATS agent.
type LATSOptions struct {
	OutputKey string

	// MaxRollouts bounds select/expand/evaluate iterations.
	MaxRollouts int

	// NumCandidates is how many next steps the model samples per expansion.
	NumCandidates int

	// ExplorationWeight is the c constant in the UCT formula.
	ExplorationWeight float64

	// SolutionThreshold is the normalized score (0..1) at which a
	// trajectory counts as solved and the search stops.
	SolutionThreshold float64
}

// LATS runs Monte-Carlo tree search over reasoning trajectories: UCT
// selection, model-sampled expansion, model-scored evaluation and value
// backpropagation, until a trajectory scores above the solution threshold
// or the rollout budget is exhausted.
type LATS struct {
	*BasePattern
	maxRollouts   int
	numCandidates int
	exploration   float64
	threshold     float64
}

// NewLATS creates a LATS agent driven by m.
func NewLATS(name string, m model.Model, optFns ...func(o *LATSOptions)) *LATS {
	opts := LATSOptions{
		MaxRollouts:       DefaultLATSMaxRollouts,
		NumCandidates:     DefaultLATSNumCandidates,
		ExplorationWeight: DefaultLATSExplorationWeight,
		SolutionThreshold: DefaultLATSSolutionThreshold,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxRollouts <= 0 {
		opts.MaxRollouts = DefaultLATSMaxRollouts
	}
	if opts.NumCandidates <= 0 {
		opts.NumCandidates = DefaultLATSNumCandidates
	}
	if opts.ExplorationWeight <= 0 {
		opts.ExplorationWeight = DefaultLATSExplorationWeight
	}
	if opts.SolutionThreshold <= 0 || opts.SolutionThreshold > 1 {
		opts.SolutionThreshold = DefaultLATSSolutionThreshold
	}

	return &LATS{
		BasePattern:   newBasePattern(name, m, nil, opts.OutputKey),
		maxRollouts:   opts.MaxRollouts,
		numCandidates: opts.NumCandidates,
		exploration:   opts.ExplorationWeight,
		threshold:     opts.SolutionThreshold,
	}
}

// Run searches until a solution or the rollout budget, then answers with
// the best trajectory found.
func (a *LATS) Run(runCtx *core.RunContext) error {
	task := taskText(runCtx)
	root := &latsNode{visits: 1}
	best := root

	for rollout := 1; rollout <= a.maxRollouts; rollout++ {
		node := a.selectNode(root)

		children, err := a.expand(runCtx, task, node)
		if err != nil {
			return fmt.Errorf("lats rollout %d: %w", rollout, err)
		}

		var top *latsNode
		for _, child := range children {
			a.backpropagate(child, child.score)
			if top == nil || child.score > top.score {
				top = child
			}
			if best.parent == nil || child.score > best.score {
				best = child
			}
		}

		if err := a.emitStep(runCtx, "rollout", map[string]any{
			"rollout":    rollout,
			"candidates": len(children),
			"best_score": best.score,
		}); err != nil {
			return err
		}

		if top != nil && top.solution && top.score >= a.threshold {
			runCtx.LogDebug("lats.solution", "agent", a.Name(), "rollout", rollout, "score", top.score)
			return a.emitFinal(runCtx, renderTrajectory(top))
		}
	}

	if best.parent == nil {
		return fmt.Errorf("lats: no trajectory expanded within %d rollouts", a.maxRollouts)
	}
	return a.emitFinal(runCtx, renderTrajectory(best))
}

// selectNode descends from the root picking the child with the highest
// UCT value until reaching a leaf.
func (a *LATS) selectNode(root *latsNode) *latsNode {
	node := root
	for len(node.children) > 0 {
		var chosen *latsNode
		bestUCT := math.Inf(-1)
		for _, child := range node.children {
			if v := child.uct(a.exploration); v > bestUCT {
				bestUCT = v
				chosen = child
			}
		}
		node = chosen
	}
	return node
}

// expand samples candidate next steps at node and scores each with the
// evaluator.
func (a *LATS) expand(runCtx *core.RunContext, task string, node *latsNode) ([]*latsNode, error) {
	trajectory := node.trajectory()

	candidates, err := a.sample(runCtx, latsExpandInstructions, expandPrompt(task, trajectory), a.numCandidates)
	if err != nil {
		return nil, err
	}

	var children []*latsNode
	for _, step := range candidates {
		step = strings.TrimSpace(step)
		if step == "" {
			continue
		}

		child := &latsNode{parent: node, step: step, solution: strings.Contains(step, "SOLUTION:")}

		evaluation, err := a.generate(runCtx, latsEvaluateInstructions,
			evaluatePrompt(task, append(trajectory, step)))
		if err != nil {
			return nil, err
		}
		child.score = parseScore(evaluation)

		node.children = append(node.children, child)
		children = append(children, child)
	}

	if len(children) == 0 {
		return nil, fmt.Errorf("expansion produced no candidates")
	}
	return children, nil
}

// backpropagate adds the score and a visit to every node on the path back
// to the root.
func (a *LATS) backpropagate(node *latsNode, score float64) {
	for cur := node; cur != nil; cur = cur.parent {
		cur.visits++
		cur.valueSum += score
	}
}

// parseScore extracts the 0..10 score and normalizes it into 0..1.
func parseScore(evaluation string) float64 {
	m := latsScoreRe.FindStringSubmatch(evaluation)
	if m == nil {
		return 0
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	score /= 10
	return math.Max(0, math.Min(1, score))
}

func renderTrajectory(node *latsNode) string {
	steps := node.trajectory()
	last := steps[len(steps)-1]
	if cut, ok := strings.CutPrefix(last, "SOLUTION:"); ok {
		return strings.TrimSpace(cut)
	}
	if i := strings.Index(last, "SOLUTION:"); i >= 0 {
		return strings.TrimSpace(last[i+len("SOLUTION:"):])
	}
	return strings.Join(steps, "\n")
}

func expandPrompt(task string, trajectory []string) string {
	var b strings.Builder
	b.WriteString("Task: " + task + "\n")
	if len(trajectory) > 0 {
		b.WriteString("\nTrajectory so far:\n")
		for i, s := range trajectory {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}
	b.WriteString("\nPropose the next step.")
	return b.String()
}

func evaluatePrompt(task string, trajectory []string) string {
	var b strings.Builder
	b.WriteString("Task: " + task + "\n\nTrajectory:\n")
	for i, s := range trajectory {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return b.String()
}
