package report

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"voipcheck/internal/history"
	"voipcheck/internal/metrics"
	"voipcheck/internal/models"
)

// History prints per-channel pass rates for stored runs.
func (c *Console) History(runs []models.RunReport) {
	c.Banner("Probe History")
	if len(runs) == 0 {
		c.println("No runs recorded yet.")
		return
	}

	latest := runs[len(runs)-1]
	c.println(fmt.Sprintf("Runs: %d  Last run: %s  Verdict: %s",
		len(runs), latest.StartedAt.UTC().Format("2006-01-02 15:04:05"), c.Verdict(latest.Passed())))
	c.Blank()

	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tPASS %\tPASSED\tFAILED\tTIMEOUT\tREFUSED\tLAST")
	for _, rate := range metrics.ComputeChannelPassRate(runs) {
		fmt.Fprintf(tw, "%s\t%.2f\t%d\t%d\t%d\t%d\t%s\n",
			channelLabel(rate.Channel),
			rate.PassPercent,
			rate.Passing,
			rate.Failing,
			rate.Outcomes[string(models.OutcomeTimeout)],
			rate.Outcomes[string(models.OutcomeRefused)],
			rate.LastOutcome,
		)
	}
	_ = tw.Flush()

	c.mu.Lock()
	_, _ = c.out.Write(buf.Bytes())
	c.mu.Unlock()

	start, end := history.Span(runs)
	c.Blank()
	c.println(fmt.Sprintf("Timeline %s .. %s", start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)))
	for _, tl := range history.BuildChannelTimelines(runs, start, end, history.DefaultTimelinePoints) {
		var line strings.Builder
		for _, point := range tl.Timeline {
			line.WriteString(c.glyph(point.State))
		}
		c.println(fmt.Sprintf("%-21s%s", channelLabel(tl.Channel)+":", line.String()))
	}
}

func (c *Console) glyph(state string) string {
	switch state {
	case history.StateOK:
		return c.markers["+"].Render("+")
	case history.StateWarning:
		return c.markers["!"].Render("!")
	case history.StateError:
		return c.markers["-"].Render("-")
	default:
		return "."
	}
}
