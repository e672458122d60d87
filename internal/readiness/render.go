package readiness

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/oszuidwest/zwfm-selftest/internal/util"
)

// Render prints the report as a table followed by the verdict.
func Render(w io.Writer, r Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tSTATUS\tDETAIL\tTESTED")
	for _, res := range r.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", res.Component, highlight(res.Status, res.Passed), dashIfEmpty(res.Detail), util.HumanTime(res.At))
	}
	for _, c := range r.Untested {
		fmt.Fprintf(tw, "%s\t%s\t-\t-\n", c, dim("not tested"))
	}
	_ = tw.Flush()

	switch {
	case r.Ready:
		fmt.Fprintln(w, "\n"+highlight("Ready for a call", true))
	case len(r.Results) == 0:
		fmt.Fprintln(w, "\nNothing tested yet.")
	default:
		fmt.Fprintf(w, "\n%s: %v\n", highlight("Not ready", false), r.Failing)
	}
}

func dashIfEmpty(val string) string {
	if val == "" {
		return "-"
	}
	return val
}

func highlight(text string, ok bool) string {
	if color.NoColor {
		return text
	}
	if ok {
		return color.New(color.FgGreen).Sprint(text)
	}
	return color.New(color.FgHiRed).Sprint(text)
}

func dim(text string) string {
	if color.NoColor {
		return text
	}
	return color.New(color.Faint).Sprint(text)
}
