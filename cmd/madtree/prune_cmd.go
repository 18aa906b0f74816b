package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
	"github.com/madlib/archived-madlib-sub001/pkg/log"
)

func pruneCmd(rootConfig *rootCmdConfig) *cobra.Command {
	var (
		name string
		cp   float64
	)
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Prune a stored tree with a complexity parameter",
		Long:  `Remove every split of a stored tree whose risk reduction, relative to the root risk, does not pay for its added leaf at the given complexity parameter, and store the result under the same name.`,
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
			res, err := dtree.Prune(t, cp)
			if err != nil {
				return err
			}
			if err := st.Put(ctx, name, t); err != nil {
				return err
			}
			log.GetLoggerWithName("madtree").Info("Tree pruned",
				log.ModelNameKey, name,
				log.AlphaKey, cp,
				log.SplitsKey, res.NumSplits,
			)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d splits, depth %d\n", name, res.NumSplits, res.Depth)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "model", "m", "", "name of the stored model (required)")
	cmd.Flags().Float64Var(&cp, "cp", 0.01, "complexity parameter")
	return cmd
}
