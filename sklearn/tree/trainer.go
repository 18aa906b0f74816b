package tree

import (
	"context"
	"time"

	"github.com/madlib/archived-madlib-sub001/aggregate"
	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/dataset"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
	"github.com/madlib/archived-madlib-sub001/pkg/log"
)

// Trainer grows one tree from a row source: one data pass per level until
// the tree stops growing, one surrogate pass per split level, then
// cost-complexity pruning.
type Trainer struct {
	Params dtree.Params

	// Workers is the number of concurrent accumulators per pass; zero uses
	// GOMAXPROCS.
	Workers int

	// CP is the complexity parameter applied after growth. Zero keeps the
	// full tree.
	CP float64

	// Folds enables k-fold cross-validated selection of CP when at least 2.
	Folds int

	// OneSE picks the smallest tree within one standard error of the best
	// cross-validated error instead of the best one.
	OneSE bool

	// Name tags log records.
	Name string
}

// Grow trains an unpruned tree with surrogates. The whole training fails on
// the first error; no partial tree is returned.
func (tr *Trainer) Grow(ctx context.Context, src dataset.Source, table *dtree.SplitCandidateTable) (*dtree.Tree, *dtree.TrainContext, error) {
	tctx, err := dtree.NewTrainContext(tr.Params, table)
	if err != nil {
		return nil, nil, err
	}
	tree, err := tctx.NewTree()
	if err != nil {
		return nil, nil, err
	}
	logger := log.GetLoggerWithName("trainer").With(
		log.ModelNameKey, tr.Name,
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
	)

	start := time.Now()
	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		open := tree.OpenLeaves()
		if len(open) == 0 {
			break
		}
		roundStart := time.Now()
		buf, err := aggregate.RunLevel(ctx, src, tctx, tree, tr.Workers)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "round %d", round)
		}
		if round == 1 && buf.Rows == 0 {
			return nil, nil, errors.NewModelError("Trainer.Grow", "no rows", errors.ErrEmptyData)
		}
		done, err := dtree.Expand(tctx, tree, buf)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "round %d", round)
		}
		logger.Info("Round completed",
			log.RoundKey, round,
			log.LeavesKey, len(open),
			log.SplitsKey, tree.NumSplits(),
			log.DepthKey, tree.EffectiveDepth(),
			log.SamplesKey, buf.Rows,
			log.DurationMsKey, time.Since(roundStart).Milliseconds(),
		)
		if done {
			break
		}
	}

	if tr.Params.MaxSurrogates > 0 {
		for level := 0; level < tree.EffectiveDepth()-1; level++ {
			sbuf, err := aggregate.RunSurrogate(ctx, src, tctx, tree, level, tr.Workers)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "surrogates of level %d", level)
			}
			if err := dtree.SelectSurrogates(tctx, tree, sbuf); err != nil {
				return nil, nil, err
			}
		}
	}
	logger.Info("Tree grown",
		log.SplitsKey, tree.NumSplits(),
		log.DepthKey, tree.EffectiveDepth(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return tree, tctx, nil
}

// Train grows a tree and prunes it. With Folds set the complexity
// parameter is chosen by cross-validation and the path is returned;
// otherwise CP is used as given.
func (tr *Trainer) Train(ctx context.Context, src dataset.Source, table *dtree.SplitCandidateTable) (*dtree.Tree, []PathPoint, error) {
	var (
		tree   *dtree.Tree
		points []PathPoint
		err    error
	)
	cp := tr.CP
	if tr.Folds >= 2 {
		tree, points, err = tr.CrossValidate(ctx, src, table)
		if err != nil {
			return nil, nil, err
		}
		cp = SelectCP(points, tr.OneSE)
	} else {
		tree, _, err = tr.Grow(ctx, src, table)
		if err != nil {
			return nil, nil, err
		}
	}
	if cp > 0 {
		if _, err := prune(tree, cp, tr.Name); err != nil {
			return nil, nil, err
		}
	}
	return tree, points, nil
}

func prune(tree *dtree.Tree, cp float64, name string) (dtree.PruneResult, error) {
	res, err := dtree.Prune(tree, cp)
	if err != nil {
		return res, err
	}
	log.GetLoggerWithName("trainer").Info("Tree pruned",
		log.ModelNameKey, name,
		log.OperationKey, log.OperationPrune,
		log.AlphaKey, cp,
		log.SplitsKey, res.NumSplits,
		log.DepthKey, res.Depth,
	)
	if res.NumSplits == 0 {
		errors.Warn(errors.NewWarning("Prune", "pruning removed every split"))
	}
	return res, nil
}
