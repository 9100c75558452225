package stoppoint

import "github.com/burritoOverflow/sdb/pkg/addr"

// Collection indexes a set of stoppoints of one kind by id and by
// address. It replaces the source's StoppointCollection<T> template;
// Go generics give us the same reusable container without codegen.
type Collection[T Stoppoint] struct {
	items []T
}

// NewCollection constructs an empty collection.
func NewCollection[T Stoppoint]() *Collection[T] {
	return &Collection[T]{}
}

// Push adds item to the collection.
func (c *Collection[T]) Push(item T) {
	c.items = append(c.items, item)
}

// Size returns the number of stoppoints held.
func (c *Collection[T]) Size() int { return len(c.items) }

// IsEmpty reports whether the collection holds no stoppoints.
func (c *Collection[T]) IsEmpty() bool { return len(c.items) == 0 }

// GetByID returns the stoppoint with the given id, if present.
func (c *Collection[T]) GetByID(id int64) (T, bool) {
	for _, item := range c.items {
		if item.ID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// ContainsID reports whether id is present.
func (c *Collection[T]) ContainsID(id int64) bool {
	_, ok := c.GetByID(id)
	return ok
}

// GetByAddress returns the stoppoint planted exactly at address, if
// present.
func (c *Collection[T]) GetByAddress(address addr.VirtualAddress) (T, bool) {
	for _, item := range c.items {
		if item.Address() == address {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// ContainsAddress reports whether any stoppoint sits at address.
func (c *Collection[T]) ContainsAddress(address addr.VirtualAddress) bool {
	_, ok := c.GetByAddress(address)
	return ok
}

// EnabledAtAddress reports whether an enabled stoppoint sits at
// address.
func (c *Collection[T]) EnabledAtAddress(address addr.VirtualAddress) bool {
	item, ok := c.GetByAddress(address)
	return ok && item.IsEnabled()
}

// InRange returns every stoppoint whose address falls in [low, high).
func (c *Collection[T]) InRange(low, high addr.VirtualAddress) []T {
	var out []T
	for _, item := range c.items {
		if item.IsInRange(low, high) {
			out = append(out, item)
		}
	}
	return out
}

// ForEach calls fn for every stoppoint in the collection.
func (c *Collection[T]) ForEach(fn func(T)) {
	for _, item := range c.items {
		fn(item)
	}
}

// All returns every stoppoint in the collection.
func (c *Collection[T]) All() []T { return c.items }

// RemoveByID disables and removes the stoppoint with the given id.
// No-op if absent.
func (c *Collection[T]) RemoveByID(id int64) error {
	for i, item := range c.items {
		if item.ID() == id {
			if err := item.Disable(); err != nil {
				return err
			}
			c.items = append(c.items[:i], c.items[i+1:]...)
			return nil
		}
	}
	return nil
}

// RemoveByAddress disables and removes the stoppoint planted exactly at
// address. No-op if absent.
func (c *Collection[T]) RemoveByAddress(address addr.VirtualAddress) error {
	for i, item := range c.items {
		if item.Address() == address {
			if err := item.Disable(); err != nil {
				return err
			}
			c.items = append(c.items[:i], c.items[i+1:]...)
			return nil
		}
	}
	return nil
}
