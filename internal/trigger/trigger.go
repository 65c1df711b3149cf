// Package trigger defines the storable trigger rule values a job can carry.
//
// The job store treats a trigger as an opaque value: it validates it on add,
// encodes it next to its kind, and rebuilds it on load through the kind
// registry. Deciding when a trigger fires belongs to the scheduling loop.
package trigger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownKind is returned when no factory is registered for a trigger kind
var ErrUnknownKind = errors.New("unknown trigger kind")

// Trigger is a rule describing when a job should fire
type Trigger interface {
	// Kind names the registered factory able to rebuild this trigger
	Kind() string
	Validate() error
}

// Factory returns a pointer to a zero trigger of one kind
type Factory func() Trigger

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

func init() {
	MustRegister(KindCron, func() Trigger { return &Cron{} })
	MustRegister(KindInterval, func() Trigger { return &Interval{} })
	MustRegister(KindDate, func() Trigger { return &Date{} })
}

// Register adds a trigger kind
func Register(kind string, factory Factory) error {
	if kind == "" {
		return fmt.Errorf("trigger kind must not be empty")
	}

	mu.Lock()
	defer mu.Unlock()

	if _, ok := factories[kind]; ok {
		return fmt.Errorf("trigger kind %q already registered", kind)
	}
	factories[kind] = factory
	return nil
}

// MustRegister is like Register but panics on error
func MustRegister(kind string, factory Factory) {
	if err := Register(kind, factory); err != nil {
		panic(err)
	}
}

// New returns a zero trigger for kind, ready to be decoded into
func New(kind string) (Trigger, error) {
	mu.RLock()
	factory, ok := factories[kind]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return factory(), nil
}

// Kinds lists the registered trigger kinds
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
