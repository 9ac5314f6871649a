package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivlev/depthflow/internal/director"
)

func newScenarioCommand(ctx *commandContext) *cobra.Command {
	scenarioCmd := &cobra.Command{
		Use:   "scenario",
		Short: "Write and check scenario files",
	}
	scenarioCmd.AddCommand(newScenarioPresetCommand(ctx))
	scenarioCmd.AddCommand(newScenarioDirectorCommand(ctx))
	scenarioCmd.AddCommand(newScenarioCheckCommand())
	return scenarioCmd
}

func scenarioOutput(path string) string {
	if path != "" {
		return path
	}
	return director.GenerateScenarioPath(director.DefaultDir)
}

func newScenarioPresetCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Export the selected preset as an editable scenario",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			sc, err := director.FromPreset(cfg.Preset, cfg.EffectParams())
			if err != nil {
				return err
			}
			path := scenarioOutput(output)
			if err := director.WriteScenario(sc, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[+++] Scenario saved: %s (%d keyframes)\n", path, len(sc.Keyframes))
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "yaml", "", "Scenario file (default: scenarios/scenario_<time>.yaml)")
	return cmd
}

func newScenarioDirectorCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "director",
		Short: "Detect regions of the input and write a rack-focus scenario",
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

			sc, err := s.project(cfg, out).DirectorScenario(cmd.Context())
			if err != nil {
				return err
			}
			path := scenarioOutput(output)
			if err := director.WriteScenario(sc, path); err != nil {
				return err
			}
			fmt.Fprintf(out, "[+++] Scenario saved: %s (%d keyframes)\n", path, len(sc.Keyframes))
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "yaml", "", "Scenario file (default: scenarios/scenario_<time>.yaml)")
	return cmd
}

func newScenarioCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Parse a scenario and build its timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := director.ReadScenario(args[0])
			if err != nil {
				return err
			}
			tl, err := director.Build(sc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[*] %s: version %s, %d keyframes, %d tracks\n",
				args[0], sc.Version, len(sc.Keyframes), len(tl.Tracks()))
			return nil
		},
	}
}
