package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := newCommandContext()

	rootCmd := &cobra.Command{
		Use:           "depthflow",
		Short:         "Render 2.5D parallax videos from still images",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "YAML configuration file")
	ctx.bindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newRenderCommand(ctx))
	rootCmd.AddCommand(newFrameCommand(ctx))
	rootCmd.AddCommand(newDepthCommand(ctx))
	rootCmd.AddCommand(newScenarioCommand(ctx))
	rootCmd.AddCommand(newEncodersCommand())
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
