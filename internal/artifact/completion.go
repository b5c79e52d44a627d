package artifact

// CompletionSet maps tracked addresses to a settled flag.
//
// Addresses are never removed and a flag only moves from false to true, so
// once Reached reports true it stays true. Insertion order is kept so that
// logs and summaries are stable.
type CompletionSet struct {
	order   []string
	entries map[string]*entry
}

type entry struct {
	addr    Address
	settled bool
}

// NewCompletionSet returns a set tracking addrs, all unsettled. Duplicate
// paths are tracked once.
func NewCompletionSet(addrs ...Address) *CompletionSet {
	s := &CompletionSet{entries: make(map[string]*entry, len(addrs))}
	for _, a := range addrs {
		s.Track(a)
	}
	return s
}

// Track adds addr unsettled if its path is not already tracked. It reports
// whether the address was new.
func (s *CompletionSet) Track(addr Address) bool {
	if _, ok := s.entries[addr.Path]; ok {
		return false
	}
	s.entries[addr.Path] = &entry{addr: addr}
	s.order = append(s.order, addr.Path)
	return true
}

// Contains reports whether path is tracked.
func (s *CompletionSet) Contains(path string) bool {
	_, ok := s.entries[path]
	return ok
}

// Get returns the tracked address for path.
func (s *CompletionSet) Get(path string) (Address, bool) {
	e, ok := s.entries[path]
	if !ok {
		return Address{}, false
	}
	return e.addr, true
}

// IsSettled reports whether path is tracked and settled.
func (s *CompletionSet) IsSettled(path string) bool {
	e, ok := s.entries[path]
	return ok && e.settled
}

// Settle marks path settled and evaluates the barrier. changed is false when
// the path is untracked or was already settled; reached reflects the barrier
// after the transition either way.
func (s *CompletionSet) Settle(path string) (changed, reached bool) {
	e, ok := s.entries[path]
	if ok && !e.settled {
		e.settled = true
		changed = true
	}
	return changed, s.Reached()
}

// Reached reports whether every tracked address is settled. An empty set is
// trivially reached.
func (s *CompletionSet) Reached() bool {
	for _, e := range s.entries {
		if !e.settled {
			return false
		}
	}
	return true
}

// Len returns the number of tracked addresses.
func (s *CompletionSet) Len() int {
	return len(s.order)
}

// Addresses returns every tracked address in insertion order.
func (s *CompletionSet) Addresses() []Address {
	out := make([]Address, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, s.entries[p].addr)
	}
	return out
}

// Unsettled returns the addresses still waiting, in insertion order.
func (s *CompletionSet) Unsettled() []Address {
	var out []Address
	for _, p := range s.order {
		if e := s.entries[p]; !e.settled {
			out = append(out, e.addr)
		}
	}
	return out
}

// Snapshot returns a copy of the flags keyed by path.
func (s *CompletionSet) Snapshot() map[string]bool {
	out := make(map[string]bool, len(s.entries))
	for p, e := range s.entries {
		out[p] = e.settled
	}
	return out
}

