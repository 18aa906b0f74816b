// Package parallel splits index ranges across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Range is a half-open index interval [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices in r.
func (r Range) Len() int { return r.End - r.Start }

// Split divides [0, n) into at most parts contiguous ranges whose lengths
// differ by at most one. Empty ranges are never returned.
func Split(n, parts int) []Range {
	if n <= 0 {
		return nil
	}
	if parts <= 0 {
		parts = 1
	}
	if parts > n {
		parts = n
	}
	ranges := make([]Range, 0, parts)
	size, rem := n/parts, n%parts
	start := 0
	for i := 0; i < parts; i++ {
		end := start + size
		if i < rem {
			end++
		}
		ranges = append(ranges, Range{Start: start, End: end})
		start = end
	}
	return ranges
}

// Workers returns a sensible worker count: requested if positive, otherwise
// GOMAXPROCS.
func Workers(requested int) int {
	if requested > 0 {
		return requested
	}
	return runtime.GOMAXPROCS(0)
}

// Parallelize runs fn once per range of Split(n, workers), each on its own
// goroutine, and waits for all of them. worker is the range ordinal.
func Parallelize(n, workers int, fn func(worker, start, end int)) {
	ranges := Split(n, Workers(workers))
	if len(ranges) == 1 {
		fn(0, ranges[0].Start, ranges[0].End)
		return
	}

	var wg sync.WaitGroup
	for i, r := range ranges {
		wg.Add(1)
		go func(worker int, r Range) {
			defer wg.Done()
			fn(worker, r.Start, r.End)
		}(i, r)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially over [0, n) when n is below
// threshold, and in parallel over GOMAXPROCS ranges otherwise.
func ParallelizeWithThreshold(n, threshold int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if n < threshold {
		fn(0, n)
		return
	}
	Parallelize(n, 0, func(_, start, end int) { fn(start, end) })
}
