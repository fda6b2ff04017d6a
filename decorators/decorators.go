// Package decorators is the fixed, name-keyed decorator registry
// applied as a pre-lowering rewrite. It is structured as a table of
// {Name, Decorator} pairs, the same shape a built-in function registry
// usually takes, generalized from functions-by-name to
// decorators-by-name.
package decorators

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Kind distinguishes decorators whose rewrite changes code generation
// (Memoize) from those that only attach metadata (Debug, Timer).
type Kind int

const (
	Metadata Kind = iota
	Memoize
)

// Decorator is one registry entry. Name is the source-level decorator
// name a FunctionDef's Decorators list is matched against.
type Decorator struct {
	Name string
	Kind Kind
}

type entry struct {
	Name      string
	Decorator *Decorator
}

// builtins mirrors object.Builtins's []struct{Name string; BuiltIn
// *BuiltIn} shape: an ordered table, not a map, so registration order
// is stable and user registrations can shadow built-ins predictably.
var builtins = []entry{
	{Name: "memoize", Decorator: &Decorator{Name: "memoize", Kind: Memoize}},
	{Name: "debug", Decorator: &Decorator{Name: "debug", Kind: Metadata}},
	{Name: "timer", Decorator: &Decorator{Name: "timer", Kind: Metadata}},
}

// Registry resolves decorator names, starting from the built-in table
// and layering user registrations (via Register or LoadRegistry) on
// top. Only NewRegistry seeds the built-ins; the zero value holds no
// entries, not even memoize/debug/timer.
type Registry struct {
	entries []entry
}

// NewRegistry returns a Registry seeded with the built-in decorators.
func NewRegistry() *Registry {
	r := &Registry{}
	r.entries = append(r.entries, builtins...)
	return r
}

// Register adds or replaces a decorator by name.
func (r *Registry) Register(d *Decorator) {
	for i, e := range r.entries {
		if e.Name == d.Name {
			r.entries[i].Decorator = d
			return
		}
	}
	r.entries = append(r.entries, entry{Name: d.Name, Decorator: d})
}

// Resolve looks up a decorator by name. The bool is false when the
// converter should fail with UnsupportedDecorator.
func (r *Registry) Resolve(name string) (*Decorator, bool) {
	for _, e := range r.entries {
		if e.Name == name {
			return e.Decorator, true
		}
	}
	return nil, false
}

// registryFile is the on-disk shape LoadRegistry reads: a YAML list of
// user-defined metadata decorators (host-supplied, not code-changing —
// Memoize's code-generation rewrite is intrinsic to this compiler and
// cannot be supplied from a config file).
type registryFile struct {
	Decorators []string `yaml:"decorators"`
}

// LoadRegistry reads additional metadata-only decorator names from a
// YAML document and registers each as a Kind Metadata decorator. This
// lets a host project extend the set of decorators its source accepts
// without a compiler rebuild.
func (r *Registry) LoadRegistry(src io.Reader) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("decorators: reading registry: %w", err)
	}
	var rf registryFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return fmt.Errorf("decorators: parsing registry: %w", err)
	}
	for _, name := range rf.Decorators {
		r.Register(&Decorator{Name: name, Kind: Metadata})
	}
	return nil
}
