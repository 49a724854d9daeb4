// Package schema validates caller payload files against CUE definitions
// before they are decoded into domain types.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/rentroll/rentroll/pkg/property"
)

// Payload kinds understood by the registry.
const (
	KindProperty = "property"
	KindDraft    = "draft"
	KindTenant   = "tenant"
	KindBroker   = "broker"
)

// Registry holds compiled CUE definitions keyed by payload kind.
type Registry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewRegistry creates a registry with the built-in payload definitions.
func NewRegistry() *Registry {
	r := &Registry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	for kind, def := range map[string]string{
		KindProperty: "#Property",
		KindDraft:    "#Draft",
		KindTenant:   "#Tenant",
		KindBroker:   "#Broker",
	} {
		if err := r.Register(kind, builtinSchema, def); err != nil {
			panic(err)
		}
	}

	return r
}

// Register compiles src and stores the definition at path under kind.
func (r *Registry) Register(kind, src, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	file := r.ctx.CompileString(src, cue.Filename(kind+".cue"))
	if err := file.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", kind, err)
	}

	def := file.LookupPath(cue.ParsePath(path))
	if err := def.Err(); err != nil {
		return fmt.Errorf("schema %s has no definition %s: %w", kind, path, err)
	}

	r.schemas[kind] = def
	return nil
}

// Kinds returns the registered payload kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.schemas))
	for k := range r.schemas {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Validate checks a decoded JSON/YAML value tree against the kind's
// definition and returns the unified value.
func (r *Registry) Validate(kind string, data interface{}) (cue.Value, error) {
	r.mu.RLock()
	def, ok := r.schemas[kind]
	r.mu.RUnlock()
	if !ok {
		return cue.Value{}, fmt.Errorf("schema %s not found", kind)
	}

	val := r.ctx.Encode(data)
	if err := val.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, property.NewValidationf("Invalid %s payload: %s", kind, describe(err))
	}
	return unified, nil
}

// Decode parses a JSON or YAML document, validates it against kind and
// decodes it into out using the JSON field names of out.
func (r *Registry) Decode(data []byte, kind string, out interface{}) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return property.NewValidationf("Invalid %s payload: %v", kind, err)
	}
	if doc == nil {
		return property.NewValidationf("Invalid %s payload: document is empty", kind)
	}

	unified, err := r.Validate(kind, doc)
	if err != nil {
		return err
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to export %s payload: %w", kind, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return property.NewValidationf("Invalid %s payload: %v", kind, err)
	}
	return nil
}

// DecodeFile reads path and decodes it like Decode.
func (r *Registry) DecodeFile(path, kind string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return r.Decode(data, kind, out)
}

// describe flattens CUE errors into one line.
func describe(err error) string {
	errs := cueerrors.Errors(err)
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, strings.TrimSpace(cueerrors.Details(e, nil)))
	}
	return strings.Join(msgs, "; ")
}
