package main

import (
	"context"
	"fmt"
	"time"

	"campusnerd/internal/agent"
	"campusnerd/internal/browser"
	"campusnerd/internal/config"
	"campusnerd/internal/extract"
	"campusnerd/internal/llm"
	"campusnerd/internal/tools"
	"campusnerd/internal/tools/campus"
)

// app holds the components shared by every command.
type app struct {
	cfg       *config.Config
	browser   *browser.SessionManager
	extractor *extract.Extractor
	registry  *tools.Registry
	model     llm.Client
	agent     *agent.Agent
}

// newApp wires the components. extra options are applied to the agent after
// the ones derived from the config.
func newApp(c *config.Config, extra ...agent.Option) (*app, error) {
	exCfg, err := extractConfig(c)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       c,
		browser:   browser.NewSessionManager(browserConfig(c)),
		extractor: extract.New(exCfg),
		registry:  tools.NewRegistry(),
		model:     newLLMClient(c),
	}
	if err := campus.RegisterAll(a.registry, a.extractor); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	opts := []agent.Option{
		agent.WithMaxSteps(c.Agent.MaxSteps),
		agent.WithTimeout(c.GetAgentTimeout()),
		agent.WithTemperature(c.LLM.Temperature),
		agent.WithClock(func() time.Time { return time.Now().In(exCfg.Location) }),
		agent.WithScopes(func() agent.Scope { return a.browser.NewScope() }),
	}
	a.agent = agent.New(a.model, a.registry, append(opts, extra...)...)
	return a, nil
}

// Close waits for the active browsing scope and shuts the browser down.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.browser.Shutdown(ctx)
}

func newLLMClient(c *config.Config) llm.Client {
	switch c.LLM.Provider {
	case "openai":
		return llm.NewOpenAI(c.LLM.Endpoint, c.LLM.APIKey, c.LLM.Model, c.GetLLMTimeout())
	default:
		return llm.NewOllama(c.LLM.Endpoint, c.LLM.Model, c.GetLLMTimeout())
	}
}

func browserConfig(c *config.Config) browser.Config {
	return browser.Config{
		DebuggerURL:         c.Browser.DebuggerURL,
		Bin:                 c.Browser.Bin,
		UserDataDir:         c.Browser.UserDataDir,
		Headless:            c.Browser.Headless,
		Flags:               c.Browser.Flags,
		NavigationTimeoutMs: int(c.GetNavigationTimeout().Milliseconds()),
		AcquireTimeoutMs:    int(c.GetAcquireTimeout().Milliseconds()),
	}
}

func extractConfig(c *config.Config) (extract.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return extract.Config{}, err
	}
	return extract.Config{
		CoursesURL:    c.Dashboard.CoursesURL,
		TimelineURL:   c.Dashboard.TimelineURL,
		LoginMarkers:  c.Dashboard.LoginMarkers,
		Location:      loc,
		RetryAttempts: c.Dashboard.RetryAttempts,
		RetryInitial:  c.GetRetryInitial(),
		RetryMax:      c.GetRetryMax(),
		SettleTimeout: c.GetSettleTimeout(),
		SettlePoll:    c.GetSettlePoll(),
	}, nil
}
