package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newDepthCommand(ctx *commandContext) *cobra.Command {
	var page int
	var output string
	cmd := &cobra.Command{
		Use:   "depth",
		Short: "Estimate a depth map and store it in the cache",
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
			if output == "" {
				base := filepath.Base(cfg.InputPath)
				output = filepath.Join(outputDir, strings.TrimSuffix(base, filepath.Ext(base))+"_depth.png")
			}
			s, err := openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.close()

			if _, err := s.project(cfg, out).Depth(cmd.Context(), page-1, output); err != nil {
				return err
			}
			st := s.cache.Stats()
			fmt.Fprintf(out, "[*] Cache: %d hits, %d misses, %d writes\n", st.Hits, st.Misses, st.Writes)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page or image number (1-based)")
	cmd.Flags().StringVar(&output, "png", "", "PNG file for the depth map")
	return cmd
}
