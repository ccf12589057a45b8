// Package tools maps model-issued function calls to application-side effects
// and produces the batched results returned to the model.
package tools

import (
	"context"
	"fmt"
	"log/slog"
)

// Handler executes one function call. The returned map becomes the call's
// response payload; a non-nil error is converted to an error payload and
// never escapes the dispatch boundary.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Declaration describes a callable function for the session setup frame.
// Parameters follows the provider's JSON-schema subset.
type Declaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Call is one model-issued function invocation.
type Call struct {
	ID   string
	Name string
	Args map[string]any
}

// Result pairs a call with its response payload.
type Result struct {
	ID       string
	Name     string
	Response map[string]any
}

// Registry holds the dispatch table. Registration happens once at startup;
// Dispatch is then safe for concurrent use.
type Registry struct {
	handlers map[string]Handler
	decls    []Declaration
	logger   *slog.Logger
}

func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register adds a function to the table, replacing any previous registration
// under the same name.
func (r *Registry) Register(d Declaration, h Handler) {
	if _, ok := r.handlers[d.Name]; !ok {
		r.decls = append(r.decls, d)
	}
	r.handlers[d.Name] = h
}

// Declarations returns the registered function descriptions in registration
// order, for inclusion in the session setup frame.
func (r *Registry) Declarations() []Declaration {
	return append([]Declaration(nil), r.decls...)
}

// Dispatch executes a batch of calls sequentially and returns exactly one
// result per call, in call order. Unknown function names resolve to a generic
// ok payload; handler failures become error payloads. Nothing in a batch can
// abort the rest of it.
func (r *Registry) Dispatch(ctx context.Context, calls []Call) []Result {
	results := make([]Result, 0, len(calls))
	for _, c := range calls {
		results = append(results, Result{
			ID:       c.ID,
			Name:     c.Name,
			Response: r.dispatchOne(ctx, c),
		})
	}
	return results
}

func (r *Registry) dispatchOne(ctx context.Context, c Call) map[string]any {
	h, ok := r.handlers[c.Name]
	if !ok {
		r.logger.Warn("unknown tool call", "name", c.Name, "id", c.ID)
		return map[string]any{"result": "ok"}
	}
	resp, err := h(ctx, c.Args)
	if err != nil {
		r.logger.Warn("tool call failed", "name", c.Name, "id", c.ID, "error", err)
		return map[string]any{"error": err.Error()}
	}
	if resp == nil {
		resp = map[string]any{"result": "ok"}
	}
	return resp
}

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

// optionalStringArg extracts a string argument, returning fallback when absent.
func optionalStringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}
