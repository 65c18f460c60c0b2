package dom

import "strconv"

// Registry tracks every identifier allocated during one traversal. It is
// created at traversal start and discarded with it; concurrent traversals
// over different pages each own their own Registry and share nothing.
type Registry struct {
	used map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{used: make(map[string]struct{})}
}

// Unique reserves and returns name if it is free, otherwise name with the
// smallest positive integer suffix not yet taken (submit, submit1, submit2..).
func (r *Registry) Unique(name string) string {
	if _, taken := r.used[name]; !taken {
		r.used[name] = struct{}{}
		return name
	}
	for i := 1; ; i++ {
		candidate := name + strconv.Itoa(i)
		if _, taken := r.used[candidate]; !taken {
			r.used[candidate] = struct{}{}
			return candidate
		}
	}
}

// Has reports whether an identifier has been allocated.
func (r *Registry) Has(name string) bool {
	_, ok := r.used[name]
	return ok
}

// Len returns the number of allocated identifiers.
func (r *Registry) Len() int {
	return len(r.used)
}
