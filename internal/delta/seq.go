package delta

// SeqSet remembers the sequence numbers of events already handled so
// duplicated events can be dropped before their text is merged.
// The zero value is ready to use.
type SeqSet struct {
	seen map[uint64]struct{}
}

// Observe records seq and reports whether it was new.
func (s *SeqSet) Observe(seq uint64) bool {
	if s.seen == nil {
		s.seen = make(map[uint64]struct{})
	}
	if _, dup := s.seen[seq]; dup {
		return false
	}
	s.seen[seq] = struct{}{}
	return true
}

// Len is the number of distinct sequence numbers seen.
func (s *SeqSet) Len() int { return len(s.seen) }
