package media

import "fmt"

// Gallery is an ordered sequence of at most GalleryCapacity references.
// Positions are always contiguous: removal shifts later entries down.
type Gallery []Reference

// Len returns the number of staged images.
func (g Gallery) Len() int {
	return len(g)
}

// Full reports whether no slot is free.
func (g Gallery) Full() bool {
	return len(g) >= GalleryCapacity
}

// At returns the reference at index.
func (g Gallery) At(index int) (Reference, bool) {
	if index < 0 || index >= len(g) {
		return Reference{}, false
	}
	return g[index], true
}

// Clone returns an independent copy.
func (g Gallery) Clone() Gallery {
	if g == nil {
		return nil
	}
	out := make(Gallery, len(g))
	copy(out, g)
	return out
}

// UpsertAt replaces the reference at index when that position is occupied,
// otherwise appends ref at the end. It returns the replaced reference, if
// any. Appending to a full gallery fails with ErrGalleryFull.
func (g *Gallery) UpsertAt(index int, ref Reference) (Reference, error) {
	if index < 0 {
		return Reference{}, fmt.Errorf("%w: %d", ErrSlotOutOfRange, index)
	}
	items := *g
	if index < len(items) {
		old := items[index]
		items[index] = ref
		return old, nil
	}
	if len(items) >= GalleryCapacity {
		return Reference{}, ErrGalleryFull
	}
	*g = append(items, ref)
	return Reference{}, nil
}

// RemoveAt deletes the reference at index and compacts the sequence.
func (g *Gallery) RemoveAt(index int) (Reference, error) {
	items := *g
	if index < 0 || index >= len(items) {
		return Reference{}, fmt.Errorf("%w: %d", ErrSlotOutOfRange, index)
	}
	removed := items[index]
	out := make(Gallery, 0, len(items)-1)
	out = append(out, items[:index]...)
	out = append(out, items[index+1:]...)
	*g = out
	return removed, nil
}
