package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/madlib/archived-madlib-sub001/config"
	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/dataset"
	"github.com/madlib/archived-madlib-sub001/dataset/csvsource"
	"github.com/madlib/archived-madlib-sub001/dataset/sqlsource"
	"github.com/madlib/archived-madlib-sub001/pkg/log"
	"github.com/madlib/archived-madlib-sub001/sklearn/tree"
)

func trainCmd(rootConfig *rootCmdConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Grow a tree from the source of the configuration and store it",
		Long:  `Grow a tree level by level from the configured CSV file or table, prune it with the configured or cross-validated complexity parameter, and store it under the model name.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, st, err := rootConfig.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			src, table, enc, closer, err := openSource(ctx, cfg)
			if err != nil {
				return err
			}
			defer closer()

			p, err := cfg.Params(enc.NumClasses())
			if err != nil {
				return err
			}
			tr := &tree.Trainer{
				Params:  p,
				Workers: cfg.Tree.Workers,
				CP:      cfg.Tree.CP,
				Folds:   cfg.Tree.Folds,
				OneSE:   cfg.Tree.OneSE,
				Name:    cfg.Model,
			}
			t, path, err := tr.Train(ctx, src, table)
			if err != nil {
				return err
			}
			if err := st.Put(ctx, cfg.Model, t); err != nil {
				return err
			}
			if err := st.PutMeta(ctx, cfg.Model, &modelMeta{Task: cfg.Task, Encoding: enc, Path: path}); err != nil {
				return err
			}
			log.GetLoggerWithName("madtree").Info("Model stored",
				log.ModelNameKey, cfg.Model,
				log.SplitsKey, t.NumSplits(),
				log.DepthKey, t.EffectiveDepth(),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", cfg.Model, t)
			return nil
		},
	}
}

// openSource returns the training rows, their split candidates and the
// encoding that maps raw values to codes.
func openSource(ctx context.Context, cfg *config.Config) (dataset.Source, *dtree.SplitCandidateTable, *csvsource.Encoding, func(), error) {
	schema := cfg.Schema()
	if cfg.Source.Kind == config.SourceCSV {
		records, err := csvsource.ReadFile(cfg.Source.Path)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		enc, err := schema.Fit(records)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		src, err := enc.Source(records)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		table, err := enc.Candidates(ctx, src, cfg.Binning.Bins)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return src, table, enc, func() {}, nil
	}

	db, err := sqlsource.Open(cfg.Source.Kind, cfg.Source.DSN)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	closer := func() { _ = db.Close() }
	src := &sqlsource.Source{
		DB:           db,
		Table:        cfg.Source.Table,
		CatColumns:   cfg.Source.Categorical,
		ConColumns:   cfg.Source.Continuous,
		Response:     cfg.Source.Response,
		Weight:       cfg.Source.Weight,
		Where:        cfg.Source.Where,
		PartitionKey: cfg.Source.PartitionKey,
	}
	if err := src.LoadLevels(ctx, schema.Classify); err != nil {
		closer()
		return nil, nil, nil, nil, err
	}
	table, err := src.Candidates(ctx, cfg.Binning.Bins, cfg.Binning.SampleLimit)
	if err != nil {
		closer()
		return nil, nil, nil, nil, err
	}
	enc, err := csvsource.NewEncoding(schema, src.Levels, src.Classes)
	if err != nil {
		closer()
		return nil, nil, nil, nil, err
	}
	return src, table, enc, closer, nil
}
