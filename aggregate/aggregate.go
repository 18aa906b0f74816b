// Package aggregate drives one pass over a row source: rows are spread over
// a set of workers, each folding them into a private accumulator, and the
// partial accumulators are combined with a pairwise merge once every worker
// is done. The result does not depend on how rows were spread.
package aggregate

import (
	"context"
	"sync"
	"time"

	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/core/parallel"
	"github.com/madlib/archived-madlib-sub001/dataset"
	"github.com/madlib/archived-madlib-sub001/pkg/log"
)

// batchSize is the number of rows handed to a worker at a time when a
// source cannot be partitioned.
const batchSize = 256

// Accumulator is the state one worker folds rows into.
type Accumulator[A any] interface {
	Accumulate(dtree.Row)
	Merge(A) error
}

// Run scans src once with the given number of workers and returns the
// merged accumulator. newAcc is called once per worker. Partitioned sources
// are scanned part by part; other sources are read by a single goroutine
// that feeds the workers.
func Run[A Accumulator[A]](ctx context.Context, src dataset.Source, workers int, newAcc func() (A, error)) (A, error) {
	var zero A
	workers = parallel.Workers(workers)

	var parts []dataset.Source
	if p, ok := src.(dataset.Partitioner); ok && workers > 1 {
		parts = p.Partitions(workers)
	}
	if len(parts) == 0 {
		parts = []dataset.Source{src}
	}

	accs := make([]A, 0, max(workers, len(parts)))
	var err error
	switch {
	case len(parts) > 1:
		accs, err = scanParts(ctx, parts, newAcc)
	case workers > 1:
		accs, err = fanOut(ctx, src, workers, newAcc)
	default:
		var acc A
		acc, err = newAcc()
		if err == nil {
			err = src.Scan(ctx, func(r dtree.Row) error {
				acc.Accumulate(r)
				return nil
			})
			accs = append(accs, acc)
		}
	}
	if err != nil {
		return zero, err
	}
	return reduce(accs)
}

func scanParts[A Accumulator[A]](ctx context.Context, parts []dataset.Source, newAcc func() (A, error)) ([]A, error) {
	accs := make([]A, len(parts))
	for i := range accs {
		acc, err := newAcc()
		if err != nil {
			return nil, err
		}
		accs[i] = acc
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for i, part := range parts {
		wg.Add(1)
		go func(acc A, part dataset.Source) {
			defer wg.Done()
			err := part.Scan(ctx, func(r dtree.Row) error {
				acc.Accumulate(r)
				return nil
			})
			if err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(accs[i], part)
	}
	wg.Wait()
	return accs, firstErr
}

func fanOut[A Accumulator[A]](ctx context.Context, src dataset.Source, workers int, newAcc func() (A, error)) ([]A, error) {
	accs := make([]A, workers)
	for i := range accs {
		acc, err := newAcc()
		if err != nil {
			return nil, err
		}
		accs[i] = acc
	}

	batches := make(chan []dtree.Row, workers)
	var wg sync.WaitGroup
	for _, acc := range accs {
		wg.Add(1)
		go func(acc A) {
			defer wg.Done()
			for batch := range batches {
				for _, r := range batch {
					acc.Accumulate(r)
				}
			}
		}(acc)
	}

	batch := make([]dtree.Row, 0, batchSize)
	err := src.Scan(ctx, func(r dtree.Row) error {
		batch = append(batch, r)
		if len(batch) < batchSize {
			return nil
		}
		select {
		case batches <- batch:
		case <-ctx.Done():
			return ctx.Err()
		}
		batch = make([]dtree.Row, 0, batchSize)
		return nil
	})
	if err == nil && len(batch) > 0 {
		batches <- batch
	}
	close(batches)
	wg.Wait()
	return accs, err
}

// reduce merges accumulators pairwise, halving their number each step.
func reduce[A Accumulator[A]](accs []A) (A, error) {
	for len(accs) > 1 {
		next := accs[:0:0]
		for i := 0; i+1 < len(accs); i += 2 {
			if err := accs[i].Merge(accs[i+1]); err != nil {
				var zero A
				return zero, err
			}
			next = append(next, accs[i])
		}
		if len(accs)%2 == 1 {
			next = append(next, accs[len(accs)-1])
		}
		accs = next
	}
	return accs[0], nil
}

// RunLevel runs the level pass of one training round and returns the merged
// statistics. A terminated pass is reported as an error.
func RunLevel(ctx context.Context, src dataset.Source, tctx *dtree.TrainContext, tree *dtree.Tree, workers int) (*dtree.LevelBuffer, error) {
	start := time.Now()
	acc, err := Run(ctx, src, workers, func() (*dtree.LevelAccumulator, error) {
		return dtree.NewLevelAccumulator(tctx, tree)
	})
	if err != nil {
		return nil, err
	}
	buf := acc.Buffer()
	log.GetLoggerWithName("aggregate").Debug("Level pass completed",
		log.OperationKey, log.OperationAccumulate,
		log.LeavesKey, buf.NumLeaves(),
		log.SamplesKey, buf.Rows,
		log.WorkersKey, parallel.Workers(workers),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	if err := buf.Err("RunLevel"); err != nil {
		return nil, err
	}
	return buf, nil
}

// RunSurrogate runs the surrogate pass for the splits at depth level.
func RunSurrogate(ctx context.Context, src dataset.Source, tctx *dtree.TrainContext, tree *dtree.Tree, level, workers int) (*dtree.SurrogateBuffer, error) {
	start := time.Now()
	acc, err := Run(ctx, src, workers, func() (*dtree.SurrogateAccumulator, error) {
		return dtree.NewSurrogateAccumulator(tctx, tree, level)
	})
	if err != nil {
		return nil, err
	}
	buf := acc.Buffer()
	log.GetLoggerWithName("aggregate").Debug("Surrogate pass completed",
		log.OperationKey, log.OperationSurrogate,
		log.LevelKey, level,
		log.SamplesKey, buf.Rows,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	if err := buf.Err("RunSurrogate"); err != nil {
		return nil, err
	}
	return buf, nil
}
