package stats

import (
	"fmt"
	"strings"

	"github.com/dispatchmate/dmate-go/pipeline"
)

// RenderSnapshot renders dispatch statistics as a pipe-delimited text
// table, one row per population, in snapshot order.
func RenderSnapshot(snap Snapshot) string {
	var b strings.Builder

	writeRow(&b, "SHAPE", "PAYLOAD", "DISPATCHES", "ERRORS", "AVG", "MIN", "MAX", "TOTAL")
	for _, row := range snap.Rows {
		writeRow(&b,
			row.Shape,
			row.PayloadType,
			fmt.Sprintf("%d", row.Dispatches),
			fmt.Sprintf("%d", row.Errors),
			row.AverageTime.String(),
			row.MinTime.String(),
			row.MaxTime.String(),
			row.TotalTime.String(),
		)
	}

	return b.String()
}

// RenderAnalysis renders registry analysis rows as a pipe-delimited text
// table, in registration order. Template rows show their type parameters
// instead of shapes, which are only known per specialization.
func RenderAnalysis(views []pipeline.InterceptorAnalysis) string {
	var b strings.Builder

	writeRow(&b, "#", "NAME", "ORDER", "SHAPES", "PARAMS", "CONDITIONAL", "CAPABILITIES", "RESOLVABLE")
	for _, v := range views {
		writeRow(&b,
			fmt.Sprintf("%d", v.Index),
			v.Name,
			v.OrderDisplay,
			orDash(strings.Join(v.Shapes, ",")),
			orDash(strings.Join(v.TypeParams, ",")),
			yesOrDash(v.Conditional),
			orDash(strings.Join(v.Capabilities, ",")),
			yesNo(v.Resolvable),
		)
	}

	return b.String()
}

func writeRow(b *strings.Builder, cells ...string) {
	b.WriteString(strings.Join(cells, " | "))
	b.WriteByte('\n')
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesOrDash(v bool) string {
	if v {
		return "yes"
	}
	return "-"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
