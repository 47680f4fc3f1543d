package cron

import "context"

// AgentExecutor is the injected capability that runs agent-job
// prompts. The engine never constructs one; it is supplied at Manager
// construction or via SetAgentExecutor. Implementations return the
// response text on success.
type AgentExecutor interface {
	Execute(ctx context.Context, cfg AgentJobConfig, prompt, workingDir string) (string, error)
}

// AgentExecutorFunc adapts a function to the AgentExecutor interface.
type AgentExecutorFunc func(ctx context.Context, cfg AgentJobConfig, prompt, workingDir string) (string, error)

// Execute implements AgentExecutor.
func (f AgentExecutorFunc) Execute(ctx context.Context, cfg AgentJobConfig, prompt, workingDir string) (string, error) {
	return f(ctx, cfg, prompt, workingDir)
}
