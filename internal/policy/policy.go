// Package policy defines the narrow interfaces this repository's core
// depends on but does not implement: the contextual-bandit policy service,
// the chat-upstream proxy, and the cloud-sync stub. These remain true
// external collaborators; wiring a concrete backend is out of scope.
package policy

import "context"

// Service chooses among arms given a feature vector and later receives a
// reward signal for the arm it chose. Backed by an external
// contextual-bandit implementation.
type Service interface {
	Choose(ctx context.Context, arms []string, features map[string]float64) (string, error)
	Reward(ctx context.Context, arm string, reward float64) error
}

// ChatUpstream completes a prompt against an external chat backend.
type ChatUpstream interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CloudSync pushes a namespace's contents to an external sync target.
type CloudSync interface {
	Push(ctx context.Context, namespace string) error
}
