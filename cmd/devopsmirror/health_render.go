package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// healthState is the verdict shown in brackets next to a health line.
type healthState string

const (
	healthOK     healthState = "OK"
	healthFailed healthState = "FAIL"
	healthFact   healthState = ""
)

// healthLine is one labelled row of the text health report. Fact lines
// (driver, counts) carry no verdict.
type healthLine struct {
	Label  string
	State  healthState
	Detail string
}

const healthLabelWidth = 16

func (l healthLine) format(colorize bool) string {
	value := l.Detail
	if l.State != healthFact {
		verdict := "[" + string(l.State) + "]"
		if colorize {
			verdict = stateColors(l.State).Sprint(verdict)
		}
		value = strings.TrimSpace(verdict + " " + l.Detail)
	}
	return fmt.Sprintf("  %-*s %s", healthLabelWidth, l.Label+":", value)
}

func stateColors(state healthState) text.Colors {
	if state == healthOK {
		return text.Colors{text.FgGreen}
	}
	return text.Colors{text.FgRed, text.Bold}
}

func environmentLines(checks []checkView) []healthLine {
	lines := make([]healthLine, 0, len(checks))
	for _, check := range checks {
		state := healthOK
		if !check.Passed {
			state = healthFailed
		}
		lines = append(lines, healthLine{Label: check.Name, State: state, Detail: check.Detail})
	}
	return lines
}

// databaseLines describes the store. When the backend could not be reached
// at all only the error is shown; counts from a zero DatabaseHealth would
// read as an empty mirror.
func databaseLines(report healthReport) []healthLine {
	db := report.Database
	if report.Error != "" && db.Driver == "" {
		return []healthLine{{Label: "Status", State: healthFailed, Detail: report.Error}}
	}

	status := healthLine{Label: "Status", State: healthOK, Detail: report.Status}
	if !db.Reachable || report.Error != "" {
		status.State = healthFailed
		status.Detail = db.Error
		if status.Detail == "" {
			status.Detail = report.Error
		}
	}
	return []healthLine{
		status,
		{Label: "Driver", Detail: db.Driver},
		{Label: "Location", Detail: db.Location},
		{Label: "Schema version", Detail: strconv.Itoa(db.SchemaVersion)},
		{Label: "Work items", Detail: strconv.FormatInt(db.WorkItems, 10)},
		{Label: "Transitions", Detail: strconv.FormatInt(db.Transitions, 10)},
	}
}

func writeHealthSection(out io.Writer, title string, lines []healthLine, colorize bool) {
	heading := "== " + title + " =="
	if colorize {
		heading = text.Colors{text.FgCyan, text.Bold}.Sprint(heading)
	}
	fmt.Fprintln(out, heading)
	for _, line := range lines {
		fmt.Fprintln(out, line.format(colorize))
	}
}

func printHealthReport(cmd *cobra.Command, report healthReport) {
	out := cmd.OutOrStdout()
	colorize := colorOutput(out)

	if len(report.Preflight) > 0 {
		writeHealthSection(out, "Environment", environmentLines(report.Preflight), colorize)
		fmt.Fprintln(out)
	}
	writeHealthSection(out, "Database", databaseLines(report), colorize)
}

// colorOutput reports whether out is an interactive terminal and NO_COLOR
// is unset.
func colorOutput(out io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
