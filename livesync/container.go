package livesync

import "time"

// Node is one rendered record inside a container
type Node[V any] struct {
	ID   string
	View V
	// Pulses counts in-place updates; a renderer flashes the node when it grows.
	Pulses    int
	UpdatedAt time.Time
}

// View is a point-in-time copy of a container
type View[V any] struct {
	Key   string
	Nodes []Node[V]
	// Placeholder holds the empty-state copy while the container has no nodes
	// and is empty otherwise.
	Placeholder string
}

// IDs lists node ids in display order
func (v View[V]) IDs() []string {
	ids := make([]string, len(v.Nodes))
	for i, n := range v.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// Len returns the number of nodes
func (v View[V]) Len() int {
	return len(v.Nodes)
}

// IndexOf returns the display index of id, or -1
func (v View[V]) IndexOf(id string) int {
	for i, n := range v.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

type container[V any] struct {
	key         string
	placeholder string
	nodes       []Node[V]
}

func (c *container[V]) indexOf(id string) int {
	for i, n := range c.nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func (c *container[V]) removeID(id string) {
	idx := c.indexOf(id)
	if idx < 0 {
		return
	}
	c.nodes = append(c.nodes[:idx], c.nodes[idx+1:]...)
}

func (c *container[V]) view() View[V] {
	v := View[V]{Key: c.key, Nodes: make([]Node[V], len(c.nodes))}
	copy(v.Nodes, c.nodes)
	if len(c.nodes) == 0 {
		v.Placeholder = c.placeholder
	}
	return v
}
