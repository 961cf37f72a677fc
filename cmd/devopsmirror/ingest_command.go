package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tailscale/hujson"

	"devopsmirror/internal/config"
)

// ingestOutcome is one replayed payload and what the server did with it.
type ingestOutcome struct {
	Source    string `json:"source"`
	Status    string `json:"status"`
	Processed bool   `json:"processed"`
	Error     string `json:"error,omitempty"`
}

type ingestReport struct {
	Results    []ingestOutcome `json:"results"`
	Recorded   int             `json:"recorded"`
	Duplicates int             `json:"duplicates"`
	Failed     int             `json:"failed"`
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var stopOnError bool

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Replay work item update notifications from files",
		Long: `Replay work item update notifications from files.

Each file holds either a single notification body or an object of the form
{"payloads": [...]}; a bare JSON array of notifications is also accepted.
Comments and trailing commas are allowed. Payloads are applied in order and
duplicates are reported, not treated as failures.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := loadPayloadFiles(args)
			if err != nil {
				return err
			}

			var report ingestReport
			err = ctx.withBackend(func(backend workItemBackend) error {
				for _, src := range sources {
					outcome := ingestOutcome{Source: src.name}
					result, err := backend.Ingest(cmd.Context(), src.body)
					switch {
					case err != nil:
						outcome.Status = "error"
						outcome.Error = err.Error()
						report.Failed++
					case result.Processed:
						outcome.Status = result.Status
						outcome.Processed = true
						report.Recorded++
					default:
						outcome.Status = result.Status
						report.Duplicates++
					}
					report.Results = append(report.Results, outcome)
					if err != nil && stopOnError {
						break
					}
				}
				return nil
			})
			if err != nil {
				return err
			}

			if err := render(cmd, ctx.format(), report, func() error {
				return printIngestReport(cmd, report)
			}); err != nil {
				return err
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d payloads failed", report.Failed, len(report.Results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "Stop at the first payload that fails")
	return cmd
}

func printIngestReport(cmd *cobra.Command, report ingestReport) error {
	rows := make([][]string, 0, len(report.Results))
	for _, r := range report.Results {
		rows = append(rows, []string{r.Source, r.Status, r.Error})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, tableView{
		headers: []string{"Source", "Status", "Error"},
		rows:    rows,
	}.render())
	fmt.Fprintf(out, "Recorded %d, duplicates %d, failed %d\n", report.Recorded, report.Duplicates, report.Failed)
	return nil
}

type payloadSource struct {
	name string
	body []byte
}

func loadPayloadFiles(paths []string) ([]payloadSource, error) {
	var sources []payloadSource
	for _, raw := range paths {
		path, err := config.ExpandPath(raw)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read payload file: %w", err)
		}
		payloads, err := splitPayloads(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		name := filepath.Base(path)
		for i, body := range payloads {
			label := name
			if len(payloads) > 1 {
				label = name + "#" + strconv.Itoa(i+1)
			}
			sources = append(sources, payloadSource{name: label, body: body})
		}
	}
	return sources, nil
}

// splitPayloads standardizes JSON-with-comments input and returns the
// individual notification bodies it contains.
func splitPayloads(data []byte) ([][]byte, error) {
	standard, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parse payload file: %w", err)
	}
	trimmed := bytes.TrimSpace(standard)
	if len(trimmed) == 0 {
		return nil, errors.New("payload file is empty")
	}

	var list []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("parse payload list: %w", err)
		}
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("parse payload: %w", err)
		}
		wrapped, ok := envelope["payloads"]
		if !ok {
			return [][]byte{trimmed}, nil
		}
		if err := json.Unmarshal(wrapped, &list); err != nil {
			return nil, fmt.Errorf("payloads must be an array: %w", err)
		}
	default:
		return nil, errors.New("payload file must contain a JSON object or array")
	}

	if len(list) == 0 {
		return nil, errors.New("payload file contains no payloads")
	}
	out := make([][]byte, 0, len(list))
	for _, item := range list {
		out = append(out, []byte(item))
	}
	return out, nil
}
