package main

import (
	"github.com/spf13/cobra"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Render a parallax video",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ensureDirs()
			if err := resolveInputs(cfg, out); err != nil {
				return err
			}

			s, err := openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.close()

			_, err = s.project(cfg, out).Run(cmd.Context())
			return err
		},
	}
}

func newFrameCommand(ctx *commandContext) *cobra.Command {
	var at float64
	var output string
	cmd := &cobra.Command{
		Use:   "frame",
		Short: "Render one frame to a PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := resolveInputs(cfg, out); err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.close()
			return s.project(cfg, out).Still(cmd.Context(), at, output)
		},
	}
	cmd.Flags().Float64Var(&at, "at", 0, "Time of the frame in seconds")
	cmd.Flags().StringVar(&output, "png", "frame.png", "PNG file to write")
	return cmd
}
