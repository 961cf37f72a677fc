package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"devopsmirror/internal/api"
	"devopsmirror/internal/preflight"
)

type checkView struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

type healthReport struct {
	Source    string             `json:"source"`
	Status    string             `json:"status"`
	Database  api.DatabaseHealth `json:"database"`
	Preflight []checkView        `json:"preflight,omitempty"`
	Error     string             `json:"error,omitempty"`
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check database and environment health",
		Long: `Check database and environment health.

Without --server the local directories and database are checked directly.
With --server the running server's /health endpoint is queried.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report := healthReport{Source: "local"}
			if server := ctx.serverURL(); server != "" {
				report.Source = server
			} else {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				// Creation failures surface through the directory checks below.
				_ = cfg.EnsureDirectories()
				for _, result := range preflight.RunAll(cmd.Context(), cfg, false) {
					report.Preflight = append(report.Preflight, checkView{Name: result.Name, Passed: result.Passed, Detail: result.Detail})
				}
			}

			var healthErr error
			err := ctx.withBackend(func(backend workItemBackend) error {
				status, err := backend.Health(cmd.Context())
				report.Status = status.Status
				report.Database = status.Database
				healthErr = err
				return nil
			})
			if err != nil {
				healthErr = err
			}
			if healthErr != nil {
				report.Error = healthErr.Error()
				if report.Status == "" {
					report.Status = "unhealthy"
				}
			}

			failed := healthErr != nil
			for _, check := range report.Preflight {
				if !check.Passed {
					failed = true
				}
			}

			if err := render(cmd, ctx.format(), report, func() error {
				printHealthReport(cmd, report)
				return nil
			}); err != nil {
				return err
			}
			if failed {
				return fmt.Errorf("health check failed")
			}
			return nil
		},
	}
}
