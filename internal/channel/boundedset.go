package channel

// BoundedSet is an insertion-ordered set of ids. When an insert pushes the
// size above the high-water mark, only the most recent half is kept.
type BoundedSet struct {
	limit int
	order []string
	index map[string]struct{}
}

// NewBoundedSet creates a set with the given high-water mark.
func NewBoundedSet(limit int) *BoundedSet {
	if limit < 2 {
		limit = 2
	}
	return &BoundedSet{
		limit: limit,
		index: make(map[string]struct{}),
	}
}

// Add inserts id. Re-adding an existing id does not change its position.
func (s *BoundedSet) Add(id string) {
	if _, ok := s.index[id]; ok {
		return
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.limit {
		s.trim(s.limit / 2)
	}
}

// Has reports membership.
func (s *BoundedSet) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the number of ids held.
func (s *BoundedSet) Len() int {
	return len(s.order)
}

// Limit returns the high-water mark.
func (s *BoundedSet) Limit() int {
	return s.limit
}

// trim drops the oldest ids, keeping the newest keep.
func (s *BoundedSet) trim(keep int) {
	drop := len(s.order) - keep
	for _, id := range s.order[:drop] {
		delete(s.index, id)
	}
	kept := make([]string, keep, s.limit+1)
	copy(kept, s.order[drop:])
	s.order = kept
}
