package worklog

import (
	"math"
	"strconv"
)

// IssueHours is one row of a date summary, with hours rendered as a fixed
// two-decimal string for display.
type IssueHours struct {
	IssueKey string `json:"issueKey"`
	Hours    string `json:"hours"`
}

// DateSummary is the aggregated answer for one date. Immutable once built.
type DateSummary struct {
	Date       string
	Logs       []IssueHours
	TotalHours string
	Count      int
}

// Summarize groups entries by issue key in first-seen order. Each per-issue
// sum is rounded to two decimals independently, and the headline total is
// the separately rounded sum of the unrounded hours. Under edge-case
// fractional seconds the total can therefore differ from the sum of the
// displayed rows; this matches the upstream behavior on purpose.
func Summarize(date string, entries []Entry) DateSummary {
	grouped := make(map[string]float64, len(entries))
	order := make([]string, 0, len(entries))
	total := 0.0
	for _, e := range entries {
		if _, seen := grouped[e.IssueKey]; !seen {
			order = append(order, e.IssueKey)
		}
		grouped[e.IssueKey] += e.Hours
		total += e.Hours
	}

	logs := make([]IssueHours, 0, len(order))
	for _, key := range order {
		logs = append(logs, IssueHours{IssueKey: key, Hours: formatHours(grouped[key])})
	}

	return DateSummary{
		Date:       date,
		Logs:       logs,
		TotalHours: formatHours(total),
		Count:      len(logs),
	}
}

// TotalHoursValue returns the summary total as a number rounded to two
// decimals, for callers that want hours rather than a display string.
func (s DateSummary) TotalHoursValue() float64 {
	v, err := strconv.ParseFloat(s.TotalHours, 64)
	if err != nil {
		return 0
	}
	return v
}

func formatHours(h float64) string {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return "0.00"
	}
	return strconv.FormatFloat(h, 'f', 2, 64)
}
