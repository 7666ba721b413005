package frontier

// URLSet is an insertion-ordered set of URLs. The zero value is ready to use.
// It is not safe for concurrent use; owners guard it.
type URLSet struct {
	set   map[string]struct{}
	order []string
}

func NewURLSet(urls ...string) *URLSet {
	s := &URLSet{}
	for _, u := range urls {
		s.Add(u)
	}
	return s
}

// Add reports whether u was new.
func (s *URLSet) Add(u string) bool {
	if s.set == nil {
		s.set = make(map[string]struct{})
	}
	if _, ok := s.set[u]; ok {
		return false
	}
	s.set[u] = struct{}{}
	s.order = append(s.order, u)
	return true
}

func (s *URLSet) Has(u string) bool {
	_, ok := s.set[u]
	return ok
}

func (s *URLSet) Len() int { return len(s.order) }

// List returns the members in insertion order.
func (s *URLSet) List() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Merge adds every member of o and returns how many were new.
func (s *URLSet) Merge(o *URLSet) int {
	if o == nil {
		return 0
	}
	n := 0
	for _, u := range o.order {
		if s.Add(u) {
			n++
		}
	}
	return n
}

func (s *URLSet) Clone() URLSet {
	var c URLSet
	c.Merge(s)
	return c
}
