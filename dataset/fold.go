package dataset

import (
	"context"

	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// Folder is implemented by sources that assign rows to cross-validation
// folds from a stable key instead of their position in the scan. Fold
// reports false when the source has no such key.
type Folder interface {
	Fold(k, index int, holdout bool) (Source, bool)
}

// Fold selects one cross-validation fold of a source. Row i of the
// underlying scan belongs to fold i mod K, so the source must return its
// rows in the same order on every scan. A Fold with Holdout set yields
// only the rows of fold Index; otherwise it yields all the other rows.
type Fold struct {
	Source  Source
	K       int
	Index   int
	Holdout bool
}

// Folds returns the k training folds and the k matching holdout folds. A
// Folder source chooses its own folds; any other source is split by scan
// position.
func Folds(src Source, k int) (train, holdout []Source, err error) {
	if k < 2 {
		return nil, nil, errors.NewValidationError("folds", "must be at least 2", k)
	}
	if f, ok := src.(Folder); ok {
		if _, keyed := f.Fold(k, 0, false); keyed {
			for i := 0; i < k; i++ {
				tr, _ := f.Fold(k, i, false)
				ho, _ := f.Fold(k, i, true)
				train = append(train, tr)
				holdout = append(holdout, ho)
			}
			return train, holdout, nil
		}
	}
	for i := 0; i < k; i++ {
		train = append(train, &Fold{Source: src, K: k, Index: i})
		holdout = append(holdout, &Fold{Source: src, K: k, Index: i, Holdout: true})
	}
	return train, holdout, nil
}

// Scan implements Source.
func (f *Fold) Scan(ctx context.Context, fn func(dtree.Row) error) error {
	i := 0
	return f.Source.Scan(ctx, func(r dtree.Row) error {
		in := i%f.K == f.Index
		i++
		if in != f.Holdout {
			return nil
		}
		return fn(r)
	})
}
