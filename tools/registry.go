package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/taskchat"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// entry pairs an operation with its compiled argument schema.
type entry struct {
	op     taskchat.Operation
	def    taskchat.Tool
	schema *gojsonschema.Schema
}

// Registry is an immutable, ordered catalog of operations. It is safe for
// concurrent use by any number of runs.
type Registry struct {
	entries []entry
	index   map[string]int
	log     zerolog.Logger
}

// Option configures a [Registry].
type Option func(*Registry)

// WithLogger sets the logger used for tool invocations.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// New builds the default task catalog backed by client.
func New(client taskchat.OperationClient, opts ...Option) (*Registry, error) {
	return NewRegistry(Defaults(client), opts...)
}

// NewRegistry builds a registry from ops, compiling each parameter schema.
// Duplicate names and invalid schemas are rejected.
func NewRegistry(ops []taskchat.Operation, opts ...Option) (*Registry, error) {
	r := &Registry{
		index: make(map[string]int, len(ops)),
		log:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	for _, op := range ops {
		def := op.Definition()
		if _, dup := r.index[def.Name]; dup {
			return nil, fmt.Errorf("tools: duplicate tool %q", def.Name)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(def.Parameters))
		if err != nil {
			return nil, fmt.Errorf("tools: compile schema for %q: %w", def.Name, err)
		}
		r.index[def.Name] = len(r.entries)
		r.entries = append(r.entries, entry{op: op, def: def, schema: schema})
	}
	return r, nil
}

// Tools returns the catalog definitions in registration order.
func (r *Registry) Tools() []taskchat.Tool {
	out := make([]taskchat.Tool, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.def
	}
	return out
}

// Bind returns an executor that runs tools under the identity held by scope.
// The executor is valid only while the scope is.
func (r *Registry) Bind(scope *taskchat.Scope) taskchat.ToolExecutor {
	return &executor{registry: r, scope: scope}
}

// Interface compliance check.
var _ taskchat.ToolExecutor = (*executor)(nil)

type executor struct {
	registry *Registry
	scope    *taskchat.Scope
}

// Execute validates args against the tool's schema and invokes it. Unknown
// tools and invalid arguments are reported as IsError text. A released
// scope is an infrastructure error.
func (e *executor) Execute(ctx context.Context, name string, args json.RawMessage) (*taskchat.ToolResult, error) {
	id, err := e.scope.Identity()
	if err != nil {
		return nil, fmt.Errorf("tools: %s: %w", name, err)
	}
	r := e.registry
	log := r.log.With().Str("tool", name).Str("user_id", id.UserID).Logger()

	i, ok := r.index[name]
	if !ok {
		log.Warn().Msg("unknown tool requested")
		return taskchat.ErrorResult("Error: unknown tool: " + name), nil
	}
	args = normalizeArgs(args)
	if fields, err := validate(r.entries[i].schema, args); err != nil {
		log.Debug().Err(err).Strs("fields", fields).Msg("invalid tool arguments")
		return taskchat.ErrorResult(invalidArgsText(name, fields)), nil
	}

	start := time.Now()
	res := r.entries[i].op.Invoke(log.WithContext(ctx), id, args)
	log.Debug().Bool("is_error", res.IsError).Dur("elapsed", time.Since(start)).Msg("tool invoked")
	return res, nil
}

// normalizeArgs turns empty arguments into an empty object and drops
// members set to null, which models emit for omitted optional fields.
func normalizeArgs(args json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(args)) == 0 {
		return json.RawMessage(`{}`)
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(args, &members); err != nil || members == nil {
		return args
	}
	dropped := false
	for k, v := range members {
		if string(bytes.TrimSpace(v)) == "null" {
			delete(members, k)
			dropped = true
		}
	}
	if !dropped {
		return args
	}
	out, err := json.Marshal(members)
	if err != nil {
		return args
	}
	return out
}

// validate reports why args violate schema. fields names the offending
// members when they can be told apart.
func validate(schema *gojsonschema.Schema, args json.RawMessage) (fields []string, err error) {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return nil, err
	}
	if result.Valid() {
		return nil, nil
	}
	seen := make(map[string]bool, len(result.Errors()))
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
		f := e.Field()
		if f == gojsonschema.STRING_CONTEXT_ROOT {
			// Missing required members are reported on the root.
			p, ok := e.Details()["property"].(string)
			if !ok {
				continue
			}
			f = p
		}
		if !seen[f] {
			seen[f] = true
			fields = append(fields, f)
		}
	}
	return fields, errors.New(strings.Join(msgs, "; "))
}
