package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/madlib/archived-madlib-sub001/core/dtree"
)

const (
	// VersionMajor is the major number in madtree's version
	VersionMajor = 0
	// VersionMinor is the minor number in madtree's version
	VersionMinor = 1
	// VersionPatch is the patch number in madtree's version
	VersionPatch = 0
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of madtree",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "madtree v%d.%d.%d (tree format %d)\n", VersionMajor, VersionMinor, VersionPatch, dtree.FormatVersion)
		},
	}
}
