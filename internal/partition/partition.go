// Package partition splits work lists into contiguous, near-equal slices for
// fork-join worker pools.
package partition

// Range is the half-open interval [Start, End) of one worker's slice.
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int {
	return r.End - r.Start
}

// Split divides n items into parts contiguous ranges whose lengths differ by
// at most one, the longer ranges first. Ranges may be empty when parts > n.
func Split(n, parts int) []Range {
	if parts < 1 {
		parts = 1
	}
	base, extra := n/parts, n%parts
	ranges := make([]Range, parts)
	start := 0
	for i := range ranges {
		size := base
		if i < extra {
			size++
		}
		ranges[i] = Range{Start: start, End: start + size}
		start += size
	}
	return ranges
}
