package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
	"github.com/madlib/archived-madlib-sub001/report"
)

func cpCmd(rootConfig *rootCmdConfig) *cobra.Command {
	var name, plotPath string
	cmd := &cobra.Command{
		Use:   "cp",
		Short: "Print the cost-complexity table of a stored tree",
		Long:  `Print the cross-validated cost-complexity table recorded when the tree was trained, or the pruning breakpoints of the stored tree when it was trained without cross-validation.`,
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
			meta, err := loadModel(ctx, st, name)
			if err != nil {
				return err
			}

			if len(meta.Path) > 0 {
				if err := report.WriteComplexityTable(cmd.OutOrStdout(), meta.Path); err != nil {
					return err
				}
				if plotPath != "" {
					return report.PlotComplexityPath(meta.Path, plotPath)
				}
				return nil
			}
			if plotPath != "" {
				return errors.New("the model was trained without cross-validation; nothing to plot")
			}
			t, err := st.Get(ctx, name)
			if err != nil {
				return err
			}
			path, err := dtree.ComplexityPath(t)
			if err != nil {
				return err
			}
			for _, cp := range path {
				fmt.Fprintln(cmd.OutOrStdout(), cp)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "model", "m", "", "name of the stored model (required)")
	cmd.Flags().StringVar(&plotPath, "plot", "", "path of an image (.png, .svg, .pdf) to plot the table to")
	return cmd
}
