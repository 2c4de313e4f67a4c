package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the equipix command tree.
func NewRootCmd(version string) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "equipix",
		Short:         "Adaptive compression for equipment photos",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to equipix.yaml (default: search ., ./configs, /etc/equipix)")

	root.AddCommand(
		NewServeCmd(&configFile),
		NewCompressCmd(&configFile),
		NewVersionCmd(version),
	)
	return root
}
