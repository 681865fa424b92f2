package target

// Set is a deduplicated collection of cache targets. Membership is keyed on
// CacheTarget.Key; iteration follows insertion order so runs are
// reproducible even though no cross-target ordering is ever required.
type Set struct {
	order  []CacheTarget
	member map[string]struct{}
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{member: make(map[string]struct{})}
}

// Add inserts the cache target unless an equal one is already present.
func (s *Set) Add(ct CacheTarget) {
	key := ct.Key()
	if _, ok := s.member[key]; ok {
		return
	}

	s.member[key] = struct{}{}
	s.order = append(s.order, ct)
}

// Contains reports whether an equal cache target is in the set.
func (s *Set) Contains(ct CacheTarget) bool {
	_, ok := s.member[ct.Key()]
	return ok
}

// Items returns the members in insertion order.
func (s *Set) Items() []CacheTarget {
	out := make([]CacheTarget, len(s.order))
	copy(out, s.order)

	return out
}

// Len returns the number of members.
func (s *Set) Len() int {
	return len(s.order)
}
