package schema

import (
	"slices"
	"sync"

	"github.com/wippyai/blockrep/errors"
	"github.com/wippyai/blockrep/value"
)

// Set is a named collection of descriptors that may reference each other.
// A Set is mutable until sealed; after Seal it is safe for concurrent use.
type Set struct {
	defs    map[string]*Descriptor
	fp      Fingerprint
	mu      sync.RWMutex
	Version uint32
	sealed  bool
}

// NewSet creates an empty set.
func NewSet(version uint32) *Set {
	return &Set{Version: version, defs: make(map[string]*Descriptor)}
}

// Add registers d under name. An unnamed product or sum takes name as its
// own.
func (s *Set) Add(name string, d *Descriptor) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseSchema, "descriptor name is empty")
	}
	if d == nil {
		return errors.NilPointer(errors.PhaseSchema, []string{name}, "*schema.Descriptor")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return errors.New(errors.PhaseSchema, errors.KindInvalidInput).
			Path(name).
			Detail("set is sealed").
			Build()
	}
	if _, ok := s.defs[name]; ok {
		return errors.New(errors.PhaseSchema, errors.KindAlreadyExists).
			Path(name).
			Detail("descriptor %q already defined", name).
			Build()
	}
	if d.Name == "" && (d.Kind == KindProduct || d.Kind == KindSum) {
		d.Name = name
	}
	s.defs[name] = d
	return nil
}

// MustAdd is Add for statically known schemas. It panics on error.
func (s *Set) MustAdd(name string, d *Descriptor) *Set {
	if err := s.Add(name, d); err != nil {
		panic(err)
	}
	return s
}

// Lookup returns the descriptor registered under name.
func (s *Set) Lookup(name string) (*Descriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.defs[name]
	return d, ok
}

// Names returns the registered names in sorted order.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.defs))
	for name := range s.defs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered descriptors.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.defs)
}

// Resolve follows refs until it reaches a descriptor that is not a ref.
func (s *Set) Resolve(d *Descriptor) (*Descriptor, error) {
	for hops := 0; d != nil && d.Kind == KindRef; hops++ {
		if hops > s.Len() {
			return nil, errors.SchemaMismatch(errors.PhaseSchema, "reference cycle through %q", d.Target)
		}
		next, ok := s.Lookup(d.Target)
		if !ok {
			return nil, errors.New(errors.PhaseSchema, errors.KindSchemaMismatch).
				SchemaType(d.Target).
				Detail("dangling reference to %q", d.Target).
				Build()
		}
		d = next
	}
	if d == nil {
		return nil, errors.NilPointer(errors.PhaseSchema, nil, "*schema.Descriptor")
	}
	return d, nil
}

// Seal validates the set and makes it immutable. Sealing a sealed set is
// a no-op.
func (s *Set) Seal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return nil
	}
	if err := s.validateLocked(); err != nil {
		return err
	}
	s.fp = s.fingerprintLocked()
	s.sealed = true
	return nil
}

// Sealed reports whether Seal has succeeded.
func (s *Set) Sealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealed
}

// Validate checks every descriptor of the set.
func (s *Set) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validateLocked()
}

func (s *Set) validateLocked() error {
	names := make([]string, 0, len(s.defs))
	for name := range s.defs {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if err := s.validate(s.defs[name], []string{name}); err != nil {
			return err
		}
	}
	for _, name := range names {
		if err := s.checkProductive(name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Set) validate(d *Descriptor, path []string) error {
	if d == nil {
		return errors.NilPointer(errors.PhaseSchema, path, "*schema.Descriptor")
	}
	switch d.Kind {
	case KindUnit, KindBool, KindInt, KindFloat, KindString, KindBytes, KindHandle:
		return nil

	case KindOption, KindList, KindBox:
		if d.Elem == nil {
			return errors.New(errors.PhaseSchema, errors.KindSchemaMismatch).
				Path(path...).
				Detail("%s without element descriptor", d.Kind).
				Build()
		}
		return s.validate(d.Elem, child(path, "["+d.Kind.String()+"]"))

	case KindMap:
		if d.Key == nil || d.Elem == nil {
			return errors.New(errors.PhaseSchema, errors.KindSchemaMismatch).
				Path(path...).
				Detail("map without key or value descriptor").
				Build()
		}
		if err := s.validate(d.Key, child(path, "[key]")); err != nil {
			return err
		}
		return s.validate(d.Elem, child(path, "[value]"))

	case KindRef:
		if _, ok := s.defs[d.Target]; !ok {
			return errors.New(errors.PhaseSchema, errors.KindSchemaMismatch).
				Path(path...).
				SchemaType(d.Target).
				Detail("dangling reference to %q", d.Target).
				Build()
		}
		return nil

	case KindProduct:
		return s.validateFields(d.Fields, path)

	case KindSum:
		seen := make(map[string]struct{}, len(d.Variants))
		for _, c := range d.Variants {
			if _, dup := seen[c.Name]; dup {
				return errors.New(errors.PhaseSchema, errors.KindSchemaMismatch).
					Path(path...).
					Detail("duplicate variant %q", c.Name).
					Build()
			}
			seen[c.Name] = struct{}{}
			if err := s.validateFields(c.Fields, child(path, c.Name)); err != nil {
				return err
			}
		}
		if n := d.BlockVariants(); n > value.MaxBlockVariants {
			return errors.New(errors.PhaseSchema, errors.KindUnsupported).
				Path(path...).
				Detail("%d variants with fields exceed the %d available block tags", n, value.MaxBlockVariants).
				Build()
		}
		return nil

	default:
		return errors.New(errors.PhaseSchema, errors.KindUnsupported).
			Path(path...).
			Detail("unknown descriptor kind %d", uint8(d.Kind)).
			Build()
	}
}

func (s *Set) validateFields(fields []Field, path []string) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f.Name]; dup {
			return errors.New(errors.PhaseSchema, errors.KindSchemaMismatch).
				Path(path...).
				Detail("duplicate field %q", f.Name).
				Build()
		}
		seen[f.Name] = struct{}{}
		if err := s.validate(f.Type, child(path, f.Name)); err != nil {
			return err
		}
	}
	return nil
}

// checkProductive rejects definitions that reach themselves through refs
// and boxes alone, which would describe a value with no finite encoding.
func (s *Set) checkProductive(name string) error {
	visited := make(map[*Descriptor]bool)
	d := s.defs[name]
	for d != nil {
		if visited[d] {
			return errors.New(errors.PhaseSchema, errors.KindSchemaMismatch).
				Path(name).
				Detail("definition %q refers to itself without an intervening product, sum, option or list", name).
				Build()
		}
		visited[d] = true
		switch d.Kind {
		case KindRef:
			d = s.defs[d.Target]
		case KindBox:
			d = d.Elem
		default:
			return nil
		}
	}
	return nil
}

func child(path []string, name string) []string {
	return append(path[:len(path):len(path)], name)
}
