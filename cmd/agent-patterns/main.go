// Command agent-patterns runs a reasoning pattern against a task from the
// terminal.
//
// Usage:
//
//	agent-patterns run "how many moons does jupiter have" --config config.yaml
//	agent-patterns run "summarize the design" --pattern plan-solve --provider anthropic
//	agent-patterns patterns
//	agent-patterns validate --config config.yaml
package main

import (
	"context"
	"fmt"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/osok/agent-patterns/config"
	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/patterns"
)

// CLI defines the command-line interface.
type CLI struct {
	Run      RunCmd      `cmd:"" help:"Run a reasoning pattern on a task."`
	Patterns PatternsCmd `cmd:"" help:"List the available reasoning patterns."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config string `short:"c" help:"Path to config file." type:"path"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("agent-patterns %s\n", version)
	return nil
}

// PatternsCmd lists the available reasoning patterns.
type PatternsCmd struct{}

func (c *PatternsCmd) Run() error {
	for _, name := range patterns.Names() {
		fmt.Println(name)
	}
	return nil
}

// ValidateCmd checks a configuration file.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for validate")
	}
	if _, err := config.Load(cli.Config); err != nil {
		return err
	}
	fmt.Printf("%s is valid\n", cli.Config)
	return nil
}

// RunCmd executes a reasoning pattern on a task.
type RunCmd struct {
	Task string `arg:"" help:"The task to solve."`

	// Zero-config overrides, applied on top of the config file or defaults.
	Pattern  string `help:"Reasoning pattern (see 'agent-patterns patterns')."`
	Provider string `help:"Model provider (openai, anthropic)."`
	Model    string `help:"Model name."`

	Session string `help:"Session identifier; reuse to continue a conversation." default:"cli"`
	Quiet   bool   `short:"q" help:"Print only the final answer."`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := c.loadConfig(cli.Config)
	if err != nil {
		return err
	}

	logger := cfg.BuildLogger()

	m, err := cfg.BuildModel()
	if err != nil {
		return err
	}

	registry, err := cfg.BuildToolRegistry(logger)
	if err != nil {
		return err
	}
	defer registry.Close()

	tools, err := registry.All(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}

	params := cfg.Params()
	params.Tools = tools

	agent, err := patterns.New(cfg.Agent.Pattern, cfg.Agent.Name, m, params)
	if err != nil {
		return err
	}

	eng, err := cfg.BuildEngine(logger)
	if err != nil {
		return err
	}
	eng.Register(agent)

	_, events, errs, err := eng.Run(ctx, c.Session, cfg.Agent.Name, core.NewUserText(c.Task))
	if err != nil {
		return err
	}

	for ev := range events {
		c.render(ev)
	}
	return <-errs
}

// loadConfig loads the config file when given, otherwise starts from the
// defaults, then applies the zero-config flag overrides.
func (c *RunCmd) loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		if err := config.LoadDotEnv(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
		cfg = config.Default()
	}

	if c.Pattern != "" {
		cfg.Agent.Pattern = c.Pattern
	}
	if c.Provider != "" {
		cfg.Model.Provider = c.Provider
	}
	if c.Model != "" {
		cfg.Model.Name = c.Model
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// render prints one run event. Partial chunks stream inline; structured
// events get one line each.
func (c *RunCmd) render(ev core.Event) {
	if c.Quiet {
		// Step events carry only structured data and would print blank lines.
		if ev.IsFinalResponse() && ev.Metadata["step"] == "" && ev.Text() != "" {
			fmt.Println(ev.Text())
		}
		return
	}

	if ev.IsPartial() {
		fmt.Print(ev.Text())
		return
	}

	if step := ev.Metadata["step"]; step != "" {
		fmt.Printf("[%s] %s\n", ev.Author, step)
		return
	}

	for _, fc := range ev.GetFunctionCalls() {
		fmt.Printf("[%s] -> %s(%s)\n", ev.Author, fc.Name, fc.Arguments)
	}
	for _, fr := range ev.GetFunctionResponses() {
		if fr.Error != "" {
			fmt.Printf("[%s] <- %s error: %s\n", ev.Author, fr.Name, fr.Error)
		} else {
			fmt.Printf("[%s] <- %s: %v\n", ev.Author, fr.Name, fr.Response)
		}
	}

	if text := ev.Text(); text != "" && len(ev.GetFunctionCalls()) == 0 && len(ev.GetFunctionResponses()) == 0 {
		fmt.Printf("[%s] %s\n", ev.Author, text)
	}
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agent-patterns"),
		kong.Description("Composable reasoning patterns for LLM agents."),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
