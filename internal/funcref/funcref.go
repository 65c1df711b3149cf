// Package funcref maps job functions to stable reference tokens and back.
//
// A token has the form "import/path/pkg:Name" (or "pkg:(*T).Method" for
// method expressions). Tokens survive process restarts as long as the same
// function is registered again under the same name.
package funcref

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"
)

// ErrUnresolvable is returned when a reference token has no registered function
var ErrUnresolvable = errors.New("unresolvable func reference")

// ErrDetached is returned when calling a stub from a placeholder registry
var ErrDetached = errors.New("func is not linked into this process")

// Func is the signature of a schedulable job function
type Func func(ctx context.Context, args []any, kwargs map[string]any) error

// Closures (".func1") and method values ("-fm") are compiler-named and not stable
var anonymous = regexp.MustCompile(`\.func\d+|-fm$|\[`)

// Ref derives the reference token of a top-level function
func Ref(fn Func) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("cannot reference a nil func")
	}

	rf := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if rf == nil {
		return "", fmt.Errorf("cannot determine func name")
	}
	return refFromSymbol(rf.Name())
}

func refFromSymbol(symbol string) (string, error) {
	if anonymous.MatchString(symbol) {
		return "", fmt.Errorf("func %s has no stable name; register a top-level function", symbol)
	}

	slash := strings.LastIndex(symbol, "/")
	dot := strings.Index(symbol[slash+1:], ".")
	if dot < 0 {
		return "", fmt.Errorf("malformed func symbol %q", symbol)
	}
	dot += slash + 1

	return symbol[:dot] + ":" + symbol[dot+1:], nil
}

// Registry resolves reference tokens to functions
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
	// placeholder resolves unknown well-formed tokens to a stub
	placeholder bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// NewPlaceholderRegistry creates a registry that resolves every well-formed
// token, registered or not. Unregistered tokens yield a stub returning
// ErrDetached, which lets admin tooling read stored jobs whose functions
// live in another binary.
func NewPlaceholderRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func), placeholder: true}
}

// Default is the process-wide registry
var Default = NewRegistry()

// Register adds fn under its derived token and returns the token
func (r *Registry) Register(fn Func) (string, error) {
	ref, err := Ref(fn)
	if err != nil {
		return "", err
	}
	return ref, r.RegisterAs(ref, fn)
}

// RegisterAs adds fn under an explicit token, e.g. to keep an old token
// resolvable after a function was renamed
func (r *Registry) RegisterAs(ref string, fn Func) error {
	if fn == nil {
		return fmt.Errorf("cannot register a nil func as %q", ref)
	}
	if err := validateRef(ref); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[ref] = fn
	return nil
}

// Resolve returns the function registered under ref
func (r *Registry) Resolve(ref string) (Func, error) {
	r.mu.RLock()
	fn, ok := r.funcs[ref]
	r.mu.RUnlock()

	if ok {
		return fn, nil
	}
	if r.placeholder && validateRef(ref) == nil {
		return detached(ref), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnresolvable, ref)
}

// Refs lists the registered tokens
func (r *Registry) Refs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make([]string, 0, len(r.funcs))
	for ref := range r.funcs {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

func detached(ref string) Func {
	return func(context.Context, []any, map[string]any) error {
		return fmt.Errorf("%w: %s", ErrDetached, ref)
	}
}

func validateRef(ref string) error {
	pkg, name, ok := strings.Cut(ref, ":")
	if !ok || pkg == "" || name == "" {
		return fmt.Errorf("invalid func reference %q: want \"package:Name\"", ref)
	}
	return nil
}
