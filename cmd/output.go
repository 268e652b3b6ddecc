package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cottand/tyinfer/frontend/fixture"
	"github.com/cottand/tyinfer/frontend/ilerr"
	"github.com/cottand/tyinfer/frontend/infer"
	"github.com/cottand/tyinfer/internal/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type options struct {
	logLevel    *int
	color       *string
	fuel        *int
	sections    *[]string
	debugErrors *bool
}

func registerFlags(c *cobra.Command) options {
	return options{
		logLevel: c.Flags().IntP("log-level", "l", int(slog.LevelWarn), "log level"),
		color:    c.Flags().String("color", "auto", "colour output: auto, always or never"),
		fuel:     c.Flags().Int("fuel", 0, "reduction rounds per session, 0 for the default"),
		sections: c.Flags().StringSlice("log-section", nil, "extra log sections to print debug records for"),

		debugErrors: c.Flags().Bool("debug-errors", false, "print where each diagnostic was raised"),
	}
}

// apply configures logging and returns the inference settings the flags ask for
func (o options) apply() infer.Settings {
	log.SetLevel(slog.Level(*o.logLevel))
	log.EnableSections(*o.sections...)
	ilerr.SetDebugPrinting(*o.debugErrors)
	settings := infer.DefaultSettings()
	if *o.fuel > 0 {
		settings.Fuel = *o.fuel
	}
	return settings
}

func (o options) useColor(f *os.File) (bool, error) {
	switch *o.color {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()), nil
	}
	return false, fmt.Errorf("unknown colour mode %q", *o.color)
}

const (
	green  = "\x1b[32m"
	yellow = "\x1b[33m"
	red    = "\x1b[31m"
	reset  = "\x1b[0m"
)

func paint(s, colour string, enabled bool) string {
	if !enabled {
		return s
	}
	return colour + s + reset
}

// report writes one line per call and returns how many calls did not meet
// their expectations
func report(w io.Writer, fx *fixture.Fixture, results []*infer.Result, colour bool) int {
	failures := 0
	for i, call := range fx.Calls {
		res := results[i]
		mark, markColour := "ok", green
		if res.Erased {
			markColour = yellow
		}
		checkErr := call.Check(res)
		if checkErr != nil {
			failures++
			mark, markColour = "FAIL", red
		}

		var inst []string
		for _, p := range call.Expr.Method.TypeParams {
			if t, ok := res.Type(p); ok {
				inst = append(inst, p.Name+" = "+t.String())
			}
		}
		_, _ = fmt.Fprintf(w, "%s %s: %s (%s)\n",
			paint(mark, markColour, colour), call.Name, strings.Join(inst, ", "), res.State)
		if d := res.Diagnostic(); d != nil {
			_, _ = fmt.Fprintf(w, "    %s\n", paint(ilerr.FormatWithCode(d), yellow, colour))
		}
		if checkErr != nil {
			_, _ = fmt.Fprintf(w, "    %s\n", paint(checkErr.Error(), red, colour))
		}
	}
	return failures
}
