package dataflow

import (
	"strconv"
	"strings"
	"sync/atomic"
)

const contextSuffixSpan = 10000 // ids per prefix

// ContextAllocator issues execution context ids: a letter prefix and a
// four-digit suffix ("aa0001"). The prefix advances like an odometer each
// time the suffix wraps and grows by one letter once every prefix of its
// length is used up (zz9999 is followed by aaa0000). Ids never repeat for
// the lifetime of the allocator; CompareContextIDs orders them by issue.
type ContextAllocator struct {
	n atomic.Uint64
}

// Next returns a fresh id. Safe for concurrent use.
func (a *ContextAllocator) Next() string {
	return formatContextID(a.n.Add(1))
}

func formatContextID(n uint64) string {
	p := n / contextSuffixSpan
	width, span := 2, uint64(26*26)
	for p >= span {
		p -= span
		width++
		span *= 26
	}
	prefix := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		prefix[i] = 'a' + byte(p%26)
		p /= 26
	}
	suffix := strconv.FormatUint(n%contextSuffixSpan, 10)
	return string(prefix) + strings.Repeat("0", 4-len(suffix)) + suffix
}

// CompareContextIDs orders two ids from the same allocator by issue order:
// a longer prefix was issued later, equal lengths compare as strings.
// The result is -1, 0 or +1.
func CompareContextIDs(a, b string) int {
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return strings.Compare(a, b)
}
