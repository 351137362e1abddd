package selection

import "slices"

// Set is a membership-only set of record IDs.
type Set struct {
	ids map[int64]struct{}
}

// NewSet returns a set holding ids.
func NewSet(ids ...int64) *Set {
	s := &Set{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Contains reports whether id is a member.
func (s *Set) Contains(id int64) bool {
	_, ok := s.ids[id]
	return ok
}

// Add inserts id and reports whether it was absent.
func (s *Set) Add(id int64) bool {
	if s.Contains(id) {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether it was present.
func (s *Set) Remove(id int64) bool {
	if !s.Contains(id) {
		return false
	}
	delete(s.ids, id)
	return true
}

// Toggle flips membership of id and returns the new membership.
func (s *Set) Toggle(id int64) bool {
	if s.Remove(id) {
		return false
	}
	return s.Add(id)
}

// Len returns the number of members.
func (s *Set) Len() int {
	return len(s.ids)
}

// IDs returns the members in ascending order.
func (s *Set) IDs() []int64 {
	ids := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
