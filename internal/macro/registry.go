package macro

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
)

// ReservedNamespaces are namespaces that macro files may not claim because
// they collide with the builtin globals available to expressions.
var ReservedNamespaces = []string{"dialect", "env", "metric", "vars"}

// Registry holds loaded macro modules keyed by namespace.
// It is populated once at startup and read-only afterwards.
type Registry struct {
	modules map[string]*LoadedModule
}

// NewRegistry creates an empty macro registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]*LoadedModule),
	}
}

// Register adds a module to the registry.
// Reserved and duplicate namespaces are rejected with a RegistryError.
func (r *Registry) Register(module *LoadedModule) error {
	for _, reserved := range ReservedNamespaces {
		if module.Namespace == reserved {
			return &RegistryError{
				Namespace: module.Namespace,
				Message:   "reserved for a builtin global",
			}
		}
	}

	if existing, ok := r.modules[module.Namespace]; ok {
		return &RegistryError{
			Namespace: module.Namespace,
			Message:   fmt.Sprintf("already registered from %s", existing.Path),
		}
	}

	r.modules[module.Namespace] = module
	return nil
}

// RegisterAll registers modules in order, stopping at the first error.
func (r *Registry) RegisterAll(modules []*LoadedModule) error {
	for _, m := range modules {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether a namespace is registered.
func (r *Registry) Has(namespace string) bool {
	_, ok := r.modules[namespace]
	return ok
}

// Get returns the module for a namespace, or nil if not registered.
func (r *Registry) Get(namespace string) *LoadedModule {
	return r.modules[namespace]
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	return len(r.modules)
}

// Namespaces returns the registered namespaces in sorted order.
func (r *Registry) Namespaces() []string {
	namespaces := make([]string, 0, len(r.modules))
	for ns := range r.modules {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)
	return namespaces
}

// ToStarlarkDict converts the registry into globals for expression evaluation.
// Each namespace becomes a module value with attribute access, so expressions
// can call dates.month_floor(...) for a function defined in dates.star.
func (r *Registry) ToStarlarkDict() starlark.StringDict {
	dict := make(starlark.StringDict, len(r.modules))
	for ns, m := range r.modules {
		dict[ns] = &starlarkModule{name: ns, exports: m.Exports}
	}
	return dict
}

// RegistryError reports a namespace that could not be registered.
type RegistryError struct {
	Namespace string
	Message   string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("macro namespace %q: %s", e.Namespace, e.Message)
}

// starlarkModule wraps a namespace's exports with attribute access.
type starlarkModule struct {
	name    string
	exports starlark.StringDict
}

func (m *starlarkModule) String() string       { return "<module " + m.name + ">" }
func (m *starlarkModule) Type() string         { return "module" }
func (m *starlarkModule) Freeze()              { m.exports.Freeze() }
func (m *starlarkModule) Truth() starlark.Bool { return starlark.True }

func (m *starlarkModule) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: module")
}

func (m *starlarkModule) Attr(name string) (starlark.Value, error) {
	if v, ok := m.exports[name]; ok {
		return v, nil
	}
	return nil, starlark.NoSuchAttrError(fmt.Sprintf("module %s has no attribute %q", m.name, name))
}

func (m *starlarkModule) AttrNames() []string {
	names := make([]string, 0, len(m.exports))
	for name := range m.exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadAndRegister loads all macros from dir into a fresh registry.
// A missing directory yields an empty registry, not an error.
func LoadAndRegister(dir string) (*Registry, error) {
	modules, err := NewLoader(dir).Load()
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	if err := registry.RegisterAll(modules); err != nil {
		return nil, err
	}
	return registry, nil
}
