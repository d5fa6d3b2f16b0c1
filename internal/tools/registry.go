// ABOUTME: Typed tool registry advertised to the completion engine
// ABOUTME: Parameter schemas are reflected from the input structs, so the catalog cannot drift

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"

	"github.com/candlewick/taskgate/internal/llm"
	"github.com/candlewick/taskgate/internal/store"
)

// Mutation describes a committed task mutation so the surrounding layer can
// publish an event for it. Read-only tools produce no Mutation.
type Mutation struct {
	Action  store.AuditAction
	TaskID  string
	Details map[string]any
}

// Tool is one named, schema-described operation. The parameter schema is
// derived from the handler's input struct at registration, and every incoming
// argument payload is validated against it before the handler runs.
type Tool struct {
	name        string
	description string
	parameters  map[string]any       // advertised JSON Schema
	schema      *gojsonschema.Schema // compiled form of parameters
	invoke      func(ctx context.Context, ownerID string, args json.RawMessage) (string, *Mutation, error)
}

// Name returns the tool's advertised name.
func (t *Tool) Name() string { return t.name }

// newTool builds a Tool whose parameter schema is reflected from In.
// Fields without ",omitempty" in their json tag become required.
func newTool[In any](name, description string, handler func(ctx context.Context, ownerID string, in In) (string, *Mutation, error)) (*Tool, error) {
	var zero In

	reflector := jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	reflected := reflector.Reflect(&zero)

	raw, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("marshaling schema for %s: %w", name, err)
	}
	var parameters map[string]any
	if err := json.Unmarshal(raw, &parameters); err != nil {
		return nil, fmt.Errorf("decoding schema for %s: %w", name, err)
	}
	delete(parameters, "$schema")
	delete(parameters, "$id")

	// Compile at registration so a broken schema fails process start,
	// not a live turn.
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(parameters))
	if err != nil {
		return nil, fmt.Errorf("compiling schema for %s: %w", name, err)
	}

	return &Tool{
		name:        name,
		description: description,
		parameters:  parameters,
		schema:      compiled,
		invoke: func(ctx context.Context, ownerID string, args json.RawMessage) (string, *Mutation, error) {
			var in In
			if err := json.Unmarshal(args, &in); err != nil {
				return "", nil, fmt.Errorf("invalid input: %w", err)
			}
			return handler(ctx, ownerID, in)
		},
	}, nil
}

// validate checks an argument payload against the tool's schema.
// Returns a human-readable description of every violation, or "" if valid.
func (t *Tool) validate(args json.RawMessage) string {
	result, err := t.schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return fmt.Sprintf("arguments are not a valid JSON object: %v", err)
	}
	if result.Valid() {
		return ""
	}
	msg := ""
	for i, violation := range result.Errors() {
		if i > 0 {
			msg += "; "
		}
		msg += violation.String()
	}
	return msg
}

// Registry is the immutable, process-lifetime catalog of task tools.
// The catalog is fixed at construction and is exactly the set advertised to
// the completion engine.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry builds the fixed task-tool catalog over the given task store.
// Fails if any tool's parameter schema does not compile.
func NewRegistry(tasks store.TaskStore) (*Registry, error) {
	h := &taskHandlers{tasks: tasks}

	catalog := []struct {
		name        string
		description string
		build       func(name, description string) (*Tool, error)
	}{
		{"create-task", "Create a new task for the user", func(n, d string) (*Tool, error) {
			return newTool(n, d, h.CreateTask)
		}},
		{"list-tasks", "List the user's tasks. Status can be 'all', 'pending' or 'completed'", func(n, d string) (*Tool, error) {
			return newTool(n, d, h.ListTasks)
		}},
		{"complete-task", "Mark a task as completed", func(n, d string) (*Tool, error) {
			return newTool(n, d, h.CompleteTask)
		}},
		{"delete-task", "Delete a task", func(n, d string) (*Tool, error) {
			return newTool(n, d, h.DeleteTask)
		}},
		{"update-task", "Update a task's title or description", func(n, d string) (*Tool, error) {
			return newTool(n, d, h.UpdateTask)
		}},
	}

	r := &Registry{tools: make(map[string]*Tool)}
	for _, entry := range catalog {
		tool, err := entry.build(entry.name, entry.description)
		if err != nil {
			return nil, fmt.Errorf("registering %s: %w", entry.name, err)
		}
		r.tools[entry.name] = tool
		r.order = append(r.order, entry.name)
	}

	return r, nil
}

// Definitions returns the advertised tool schemas in catalog order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, llm.ToolDefinition{
			Name:        t.name,
			Description: t.description,
			Parameters:  t.parameters,
		})
	}
	return defs
}

// Names returns the catalog's tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookup returns the named tool, or nil.
func (r *Registry) lookup(name string) *Tool {
	return r.tools[name]
}
