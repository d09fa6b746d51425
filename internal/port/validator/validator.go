// Package validator defines the port for the per-agent scoring strategy. The
// isolation framework owns identity, timing and signing; a Validator only
// judges the change.
package validator

import (
	"context"

	"github.com/Strob0t/quorumgate/internal/domain/agent"
	"github.com/Strob0t/quorumgate/internal/domain/task"
	"github.com/Strob0t/quorumgate/internal/domain/validation"
)

// Validator evaluates one task as one agent. Implementations receive private
// copies of the task and scope and must not retain them.
type Validator interface {
	Validate(ctx context.Context, a agent.Descriptor, t task.Task, scope validation.ContextScope) (validation.Verdict, error)
}

// Func adapts a function to the Validator interface.
type Func func(ctx context.Context, a agent.Descriptor, t task.Task, scope validation.ContextScope) (validation.Verdict, error)

// Validate implements Validator.
func (f Func) Validate(ctx context.Context, a agent.Descriptor, t task.Task, scope validation.ContextScope) (validation.Verdict, error) {
	return f(ctx, a, t, scope)
}
