package generic

// Set[T] is an unordered collection of unique items. Used for the recognized
// media-extension lookups and the repair walk's claimed-path set.
type Set[T comparable] map[T]Void

// NewSet constructs a Set[T] containing the given items.
func NewSet[T comparable](items ...T) Set[T] {
	s := make(Set[T], len(items))
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts an item, returning true if it was not already present.
func (s Set[T]) Add(item T) bool {
	if _, found := s[item]; found {
		return false
	}
	s[item] = NewVoid()
	return true
}

// Contains returns true only if every given item is present.
func (s Set[T]) Contains(items ...T) bool {
	for _, item := range items {
		if _, found := s[item]; !found {
			return false
		}
	}
	return true
}

// Remove deletes an item, returning true if it was present.
func (s Set[T]) Remove(item T) bool {
	if _, found := s[item]; !found {
		return false
	}
	delete(s, item)
	return true
}

// Count returns the number of items in the set.
func (s Set[T]) Count() int {
	return len(s)
}

// ToSlice returns the items in unspecified order.
func (s Set[T]) ToSlice() []T {
	slice := make([]T, 0, len(s))
	for item := range s {
		slice = append(slice, item)
	}
	return slice
}
