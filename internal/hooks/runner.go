package hooks

import (
	"context"
	"log"
)

// Result is the outcome of one hook run.
type Result struct {
	Hook     string
	Response *Response
	Err      error
}

// Success reports whether the hook ran and reported success.
func (r Result) Success() bool {
	return r.Err == nil && r.Response != nil && r.Response.Success
}

// Message returns the failure text, if any.
func (r Result) Message() string {
	switch {
	case r.Err != nil:
		return r.Err.Error()
	case r.Response != nil && !r.Response.Success:
		return r.Response.Error
	}
	return ""
}

// Runner runs every hook subscribed to an event, one after another.
type Runner struct {
	manager  *Manager
	executor *Executor
}

// NewRunner creates a Runner over the hooks known to manager.
func NewRunner(manager *Manager, executor *Executor) *Runner {
	return &Runner{manager: manager, executor: executor}
}

// Run executes the hooks for req.Event in name order. Failures are logged
// and returned; they do not stop later hooks.
func (r *Runner) Run(ctx context.Context, req Request) []Result {
	hooks := r.manager.ForEvent(req.Event)
	results := make([]Result, 0, len(hooks))

	for _, h := range hooks {
		hookReq := req
		resp, err := r.executor.Execute(ctx, h, &hookReq)

		res := Result{Hook: h.Manifest.Name, Response: resp, Err: err}
		if !res.Success() {
			log.Printf("Hook %s failed for recording %s: %s", h.Manifest.Name, req.Recording.ID, res.Message())
		}
		results = append(results, res)
	}

	return results
}
