package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/core/model"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
	"github.com/madlib/archived-madlib-sub001/sklearn/tree"
)

func inspectCmd(rootConfig *rootCmdConfig) *cobra.Command {
	var (
		name   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Describe a stored tree",
		Long:  `Print the shape of a stored tree and the importance of every feature, or export the tree as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return errors.New("required model flag was not set")
			}
			ctx := cmd.Context()
			_, st, err := rootConfig.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			t, err := st.Get(ctx, name)
			if err != nil {
				return err
			}
			meta, err := loadModel(ctx, st, name)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				doc := tree.ToJSON(t)
				doc.CPTable = meta.Path
				return model.ExportModel(name, doc, out)
			}

			fmt.Fprintf(out, "model:  %s (%s)\n", name, meta.Task)
			fmt.Fprintf(out, "tree:   %d splits, %d leaves, depth %d\n", t.NumSplits(), t.NumLeaves(), t.EffectiveDepth())
			fmt.Fprintf(out, "rows:   %g\n", t.Count(0))
			imp := dtree.FeatureImportance(t)
			surr := dtree.SurrogateImportance(t)
			schema := meta.Encoding.Schema
			fmt.Fprintln(out, "importance:")
			for j, col := range schema.Cat {
				fmt.Fprintf(out, "  %-20s %6.2f %6.2f\n", col, imp.Cat[j], surr.Cat[j])
			}
			for j, col := range schema.Con {
				fmt.Fprintf(out, "  %-20s %6.2f %6.2f\n", col, imp.Con[j], surr.Con[j])
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "model", "m", "", "name of the stored model (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "export the tree as JSON")
	return cmd
}

func listCmd(rootConfig *rootCmdConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the stored models",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, st, err := rootConfig.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			names, err := st.List(ctx)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}
