package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pyve/internal/doctor"
	"github.com/mesh-intelligence/pyve/internal/paths"
)

type doctorFlags struct {
	backend  string
	jsonMode bool
}

func newDoctorCmd() *cobra.Command {
	var opts doctorFlags
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the project's environment setup",
		Long: "Doctor replays every decision pyve would make for this project and\n" +
			"reports each stage: configuration, backend resolution, tool lookup,\n" +
			"lock-file freshness, and environment health. Nothing is modified.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.backend, "backend", "", "diagnose as if this backend were forced")
	cmd.Flags().BoolVar(&opts.jsonMode, "json", false, "emit the report as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, opts doctorFlags) error {
	pctx, err := paths.NewContext(flags.projectDir)
	if err != nil {
		return err
	}

	result := doctor.Run(cmd.Context(), doctor.Options{
		Paths:       pctx,
		FlagBackend: opts.backend,
		Log:         logger,
	})

	out := cmd.OutOrStdout()
	if opts.jsonMode {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		fmt.Fprintf(out, "pyve doctor (v%s)\n", result.Version)
		fmt.Fprintf(out, "project: %s\n", pctx.ProjectDir)
		if result.Resolved.Backend != "" {
			fmt.Fprintf(out, "backend: %s (%s)\n", result.Resolved.Backend, result.Resolved.Provenance())
		}
		fmt.Fprintln(out)
		for _, check := range result.Checks {
			fmt.Fprintf(out, "%-4s %-12s %s\n", check.Status, check.Name, check.Message)
			if check.FixCommand != "" && check.Status != doctor.StatusPass {
				fmt.Fprintf(out, "%-4s %-12s fix: %s\n", "", "", check.FixCommand)
			}
		}
		fmt.Fprintf(out, "\nstatus: %s\n", result.Status)
	}

	if result.Failed() {
		return silentExit(exitUserError)
	}
	return nil
}
