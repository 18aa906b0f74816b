// Command madtree trains, prunes and applies decision trees over CSV files
// and database tables.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/madlib/archived-madlib-sub001/config"
	"github.com/madlib/archived-madlib-sub001/dataset/csvsource"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
	"github.com/madlib/archived-madlib-sub001/pkg/log"
	"github.com/madlib/archived-madlib-sub001/sklearn/tree"
	"github.com/madlib/archived-madlib-sub001/store"
)

type rootCmdConfig struct {
	configPath string
	logLevel   string
}

// modelMeta is stored next to every tree.
type modelMeta struct {
	Task     string
	Encoding *csvsource.Encoding
	Path     []tree.PathPoint
}

func main() {
	if err := cliParser().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func cliParser() *cobra.Command {
	rootConfig := &rootCmdConfig{}
	rootCmd := &cobra.Command{
		Use:           "madtree",
		Short:         "madtree grows CART decision trees",
		Long:          `A tool to grow classification and regression trees level by level from CSV files or database tables, prune them and use them to make predictions`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetOutput(cmd.ErrOrStderr(), log.ToLogLevel(rootConfig.logLevel))
		},
	}
	rootCmd.PersistentFlags().StringVarP(&(rootConfig.configPath), "config", "c", "madtree.yaml", "path to the YAML training configuration; its store section is used by every command")
	rootCmd.PersistentFlags().StringVar(&(rootConfig.logLevel), "log-level", "info", "log level: debug, info, warn or error")
	rootCmd.AddCommand(
		versionCmd(),
		trainCmd(rootConfig),
		predictCmd(rootConfig),
		pruneCmd(rootConfig),
		cpCmd(rootConfig),
		inspectCmd(rootConfig),
		listCmd(rootConfig),
	)
	return rootCmd
}

func (rcc *rootCmdConfig) load() (*config.Config, error) {
	return config.Load(rcc.configPath)
}

func (rcc *rootCmdConfig) openStore(ctx context.Context) (*config.Config, store.Store, error) {
	cfg, err := rcc.load()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}

// loadModel reads a tree and its metadata.
func loadModel(ctx context.Context, st store.Store, name string) (*modelMeta, error) {
	var meta modelMeta
	if err := st.GetMeta(ctx, name, &meta); err != nil {
		return nil, err
	}
	if meta.Encoding == nil {
		return nil, errors.NewValueError("madtree", "model "+name+" has no encoding")
	}
	return &meta, nil
}
