package staged

import "slices"

// Set holds a baseline snapshot and a mutable working copy of records
// identified by a stable key. Order follows insertion; it carries no identity.
type Set[K comparable, T any] struct {
	key      func(T) K
	baseline []T
	working  []T
}

// NewSet snapshots items as both baseline and working copy.
func NewSet[K comparable, T any](key func(T) K, items []T) *Set[K, T] {
	return &Set[K, T]{
		key:      key,
		baseline: slices.Clone(items),
		working:  slices.Clone(items),
	}
}

func (s *Set[K, T]) Baseline() []T { return slices.Clone(s.baseline) }
func (s *Set[K, T]) Working() []T  { return slices.Clone(s.working) }

// Get returns the working record for k.
func (s *Set[K, T]) Get(k K) (T, bool) {
	if i := s.index(s.working, k); i >= 0 {
		return s.working[i], true
	}
	var zero T
	return zero, false
}

// BaselineGet returns the baseline record for k.
func (s *Set[K, T]) BaselineGet(k K) (T, bool) {
	if i := s.index(s.baseline, k); i >= 0 {
		return s.baseline[i], true
	}
	var zero T
	return zero, false
}

func (s *Set[K, T]) Has(k K) bool { return s.index(s.working, k) >= 0 }

func (s *Set[K, T]) WorkingKeys() []K  { return s.keys(s.working) }
func (s *Set[K, T]) BaselineKeys() []K { return s.keys(s.baseline) }

func (s *Set[K, T]) keys(items []T) []K {
	out := make([]K, 0, len(items))
	for _, it := range items {
		out = append(out, s.key(it))
	}
	return out
}

func (s *Set[K, T]) index(items []T, k K) int {
	return slices.IndexFunc(items, func(it T) bool { return s.key(it) == k })
}

func (s *Set[K, T]) insert(item T) {
	s.working = append(s.working, item)
}

func (s *Set[K, T]) remove(k K) bool {
	i := s.index(s.working, k)
	if i < 0 {
		return false
	}
	s.working = slices.Delete(s.working, i, i+1)
	return true
}

// update applies fn to a copy of the working record and stores it when fn
// returns nil.
func (s *Set[K, T]) update(k K, fn func(*T) error) (bool, error) {
	i := s.index(s.working, k)
	if i < 0 {
		return false, nil
	}
	item := s.working[i]
	if err := fn(&item); err != nil {
		return true, err
	}
	s.working[i] = item
	return true, nil
}

func (s *Set[K, T]) replaceWorking(items []T) {
	s.working = slices.Clone(items)
}

// rebase makes the working copy the new baseline.
func (s *Set[K, T]) rebase() {
	s.baseline = slices.Clone(s.working)
}

// reset discards working edits.
func (s *Set[K, T]) reset() {
	s.working = slices.Clone(s.baseline)
}
