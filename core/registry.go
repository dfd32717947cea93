package core

import (
	"context"
	"sort"
	"sync"
)

// Registry maps capability domains to Agent implementations. It is the single
// dispatch surface consumed by the orchestrator and the workflow engine.
// All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry constructs an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register makes an agent available under the given capability domain.
// Registering the same domain twice replaces the previous agent.
func (r *Registry) Register(domain string, agent Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[domain] = agent
}

// Lookup returns the agent for a domain or *UnknownAgentError.
func (r *Registry) Lookup(domain string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[domain]
	if !ok {
		return nil, &UnknownAgentError{Domain: domain}
	}
	return agent, nil
}

// Invoke dispatches a task to the agent registered for domain. It fails with
// *UnknownAgentError when the domain is not registered; any other error comes
// from the agent itself.
func (r *Registry) Invoke(ctx context.Context, domain, task string, env *Context) (*Outcome, error) {
	agent, err := r.Lookup(domain)
	if err != nil {
		return nil, err
	}
	return agent.Execute(ctx, task, env)
}

// Domains returns the registered capability domains in sorted order.
func (r *Registry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	domains := make([]string, 0, len(r.agents))
	for domain := range r.agents {
		domains = append(domains, domain)
	}
	sort.Strings(domains)
	return domains
}
