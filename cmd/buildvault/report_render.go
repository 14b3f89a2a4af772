package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"buildvault/internal/pipeline"
)

// printReport writes the human-readable run summary.
func printReport(out io.Writer, report *pipeline.Report, colorize bool) {
	ep := report.Episode
	if ep.ID != "" {
		for _, line := range renderSectionHeader(ep.Title, colorize) {
			fmt.Fprintln(out, line)
		}
		fmt.Fprintf(out, "Episode %s (%s), status %s\n", ep.ID, ep.SourceURL, ep.Status)
		if report.AlreadyExisted {
			fmt.Fprintln(out, "Episode already existed; stored results were reused where present")
		}
		if report.DemoMode {
			fmt.Fprintln(out, "Demo mode: work is capped and link enrichment is skipped (use --full to process everything)")
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "Stages:")
	for _, res := range report.Stages {
		fmt.Fprintln(out, stageLine(res, colorize))
	}
	if ep.ID == "" {
		return
	}

	c := report.Counts
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(
		[]column{numericCol("Segments"), numericCol("Groups"), numericCol("Insights"), numericCol("Products"), numericCol("Links"), numericCol("Enriched")},
		[][]string{{itoa(c.Segments), itoa(c.Groups), itoa(c.Insights), itoa(c.Products), itoa(c.Links), itoa(c.Enriched)}},
	))

	if summary := strings.TrimSpace(report.Summary); summary != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Summary:")
		fmt.Fprintln(out, summary)
	}

	if len(report.Speakers) > 0 {
		rows := make([][]string, 0, len(report.Speakers))
		for _, s := range report.Speakers {
			rows = append(rows, []string{s.Speaker, fmt.Sprintf("%.0fs", s.Seconds), fmt.Sprintf("%.1f%%", s.Percent)})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]column{textCol("Speaker"), numericCol("Time"), numericCol("Share")}, rows))
	}

	if len(report.Categories) > 0 {
		rows := make([][]string, 0, len(report.Categories))
		for _, cat := range report.Categories {
			rows = append(rows, []string{cat.Category, itoa(cat.Count)})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]column{textCol("Category"), numericCol("Insights")}, rows))
	}

	if len(report.Insights) > 0 {
		rows := make([][]string, 0, len(report.Insights))
		for _, in := range report.Insights {
			rows = append(rows, []string{in.Category, in.Content, fmt.Sprintf("%.2f", in.Confidence)})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]column{textCol("Category"), textCol("Insight"), numericCol("Confidence")}, rows))
	}

	if len(report.Products) > 0 {
		rows := make([][]string, 0, len(report.Products))
		for _, p := range report.Products {
			rows = append(rows, []string{p.Name, p.Category, itoa(p.MentionCount), itoa(p.Episodes)})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]column{textCol("Product"), textCol("Category"), numericCol("Mentions"), numericCol("Episodes")}, rows))
	}

	if len(report.Links) > 0 {
		rows := make([][]string, 0, len(report.Links))
		for _, l := range report.Links {
			rows = append(rows, []string{l.URL, l.Title, yesNo(l.Enriched)})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]column{textCol("Link"), textCol("Title"), textCol("Enriched")}, rows))
	}

	cost := report.Cost
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Estimated cost: $%.4f (transcription $%.4f, summary $%.4f, insights $%.4f)\n",
		cost.Total, cost.Transcription, cost.Summary, cost.Insights)
}

func itoa(v int) string { return strconv.Itoa(v) }

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
