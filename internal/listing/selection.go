package listing

// Selection is an ordered set of selected record ids. It is not safe for
// concurrent use; Controller serialises access to it.
type Selection[ID comparable] struct {
	order []ID
	set   map[ID]struct{}
}

// NewSelection returns an empty selection.
func NewSelection[ID comparable]() *Selection[ID] {
	return &Selection[ID]{set: make(map[ID]struct{})}
}

// ToggleOne flips membership of id and reports whether it is now selected.
func (s *Selection[ID]) ToggleOne(id ID) bool {
	if _, ok := s.set[id]; ok {
		s.remove(id)
		return false
	}
	s.add(id)
	return true
}

// ToggleAllOnPage removes every id in pageIDs when all of them are already
// selected, and adds all of them otherwise. An empty page is a no-op.
func (s *Selection[ID]) ToggleAllOnPage(pageIDs []ID) {
	if len(pageIDs) == 0 {
		return
	}
	if s.AllSelected(pageIDs) {
		for _, id := range pageIDs {
			s.remove(id)
		}
		return
	}
	for _, id := range pageIDs {
		s.add(id)
	}
}

// Prune removes ids and returns how many were selected.
func (s *Selection[ID]) Prune(ids ...ID) int {
	n := 0
	for _, id := range ids {
		if _, ok := s.set[id]; ok {
			s.remove(id)
			n++
		}
	}
	return n
}

// Clear empties the selection.
func (s *Selection[ID]) Clear() {
	s.order = nil
	clear(s.set)
}

// Contains reports whether id is selected.
func (s *Selection[ID]) Contains(id ID) bool {
	_, ok := s.set[id]
	return ok
}

// AllSelected reports whether every id is selected. It is false for an
// empty slice.
func (s *Selection[ID]) AllSelected(ids []ID) bool {
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if _, ok := s.set[id]; !ok {
			return false
		}
	}
	return true
}

// IDs returns the selected ids in selection order.
func (s *Selection[ID]) IDs() []ID {
	out := make([]ID, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of selected ids.
func (s *Selection[ID]) Len() int {
	return len(s.set)
}

func (s *Selection[ID]) add(id ID) {
	if _, ok := s.set[id]; ok {
		return
	}
	s.set[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *Selection[ID]) remove(id ID) {
	delete(s.set, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
