package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ivlev/depthflow/internal/system"
)

func newEncodersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "encoders",
		Short: "List the FFmpeg H.264 encoders and the one render would pick",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			encoders, err := system.ListEncoders(cmd.Context())
			if err != nil {
				return fmt.Errorf("ffmpeg -encoders: %w", err)
			}
			best := system.GetBestH264Encoder(cmd.Context())
			for _, name := range encoders {
				if !strings.Contains(name, "264") {
					continue
				}
				mark := " "
				if name == best {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %-20s quality %d\n", mark, name, system.DefaultQuality(name))
			}
			return nil
		},
	}
}
