package offreg

// ref addresses an arena slot. A ref outlives its slot safely: once the slot
// is released its generation moves on and the ref stops resolving.
type ref struct {
	index int
	gen   uint32
}

var noRef = ref{index: -1}

type slot struct {
	gen  uint32
	node *keyNode
}

// arena owns every open key node of one hive.
type arena struct {
	slots []slot
	free  []int
	live  int
}

func (a *arena) alloc(n *keyNode) ref {
	var i int
	if k := len(a.free); k > 0 {
		i = a.free[k-1]
		a.free = a.free[:k-1]
	} else {
		a.slots = append(a.slots, slot{})
		i = len(a.slots) - 1
	}
	a.slots[i].node = n
	a.live++
	return ref{index: i, gen: a.slots[i].gen}
}

func (a *arena) get(r ref) *keyNode {
	if r.index < 0 || r.index >= len(a.slots) {
		return nil
	}
	s := &a.slots[r.index]
	if s.gen != r.gen {
		return nil
	}
	return s.node
}

func (a *arena) release(r ref) bool {
	if a.get(r) == nil {
		return false
	}
	s := &a.slots[r.index]
	s.node = nil
	s.gen++
	a.free = append(a.free, r.index)
	a.live--
	return true
}

// each visits every live slot.
func (a *arena) each(fn func(ref, *keyNode)) {
	for i := range a.slots {
		if n := a.slots[i].node; n != nil {
			fn(ref{index: i, gen: a.slots[i].gen}, n)
		}
	}
}
