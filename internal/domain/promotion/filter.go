package promotion

import (
	"github.com/bits-and-blooms/bloom/v3"
)

// CodeFilter is a bloom-filter pre-check over the set of known promotion
// codes. A negative answer is definitive and saves a repository round trip
// for bogus codes; a positive answer still goes through the repository.
type CodeFilter struct {
	f *bloom.BloomFilter
}

// NewCodeFilter sizes a filter for the expected number of codes at the
// given false-positive rate.
func NewCodeFilter(expected uint, fpRate float64) *CodeFilter {
	return &CodeFilter{f: bloom.NewWithEstimates(expected, fpRate)}
}

// Add registers a normalized code.
func (cf *CodeFilter) Add(code string) {
	cf.f.AddString(Normalize(code))
}

// MayContain reports whether the code might exist. False means it
// definitely does not.
func (cf *CodeFilter) MayContain(code string) bool {
	return cf.f.TestString(Normalize(code))
}
