package cache

// orderList maintains recency ordering over the keys currently stored.
// Nodes form a doubly linked list; next points toward the fresh
// (most recently used) end, prev toward the stale (least recently used) end.
// The stale end is the eviction victim when the cache breaches capacity.
//
// Invariant: the key set of the list equals the key set of the entry store
// whenever no cache operation is mid-flight.
type orderList struct {
	nodes map[string]*orderNode
	fresh *orderNode
	stale *orderNode
}

type orderNode struct {
	key  string
	prev *orderNode
	next *orderNode
}

func newOrderList() *orderList {
	return &orderList{nodes: make(map[string]*orderNode)}
}

func (l *orderList) len() int {
	return len(l.nodes)
}

// touch moves key's node to the fresh end, linking a node for it on first
// use. Touching the fresh end is a no-op, so the sole element of a
// single-node list stays both fresh and stale end.
func (l *orderList) touch(key string) {
	n := l.nodes[key]
	if n == nil {
		n = &orderNode{key: key}
		l.nodes[key] = n
	} else {
		if n == l.fresh {
			return
		}
		// A departing stale end hands stale status to its neighbor toward
		// the fresh end before it is relinked.
		if n == l.stale && n.next != nil {
			l.stale = n.next
		}
		if n.prev != nil {
			n.prev.next = n.next
		}
		if n.next != nil {
			n.next.prev = n.prev
		}
	}
	n.next = nil
	n.prev = l.fresh
	if l.fresh != nil {
		l.fresh.next = n
	}
	l.fresh = n
	if l.stale == nil {
		l.stale = n
	}
}

// unlink removes key's node, repairing neighbor links. A removed fresh end
// falls back to its predecessor; a removed stale end advances to its
// successor.
func (l *orderList) unlink(key string) {
	n := l.nodes[key]
	if n == nil {
		return
	}
	if l.fresh == n {
		l.fresh = n.prev
	}
	if l.stale == n {
		l.stale = n.next
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	n.prev = nil
	n.next = nil
	delete(l.nodes, key)
}

// staleKey returns the current eviction victim.
func (l *orderList) staleKey() (string, bool) {
	if l.stale == nil {
		return "", false
	}
	return l.stale.key, true
}

func (l *orderList) clear() {
	l.nodes = make(map[string]*orderNode)
	l.fresh = nil
	l.stale = nil
}

// keys returns all present keys ordered stale to fresh.
func (l *orderList) keys() []string {
	out := make([]string, 0, len(l.nodes))
	for n := l.stale; n != nil; n = n.next {
		out = append(out, n.key)
	}
	return out
}
