package insights

import (
	"fmt"
	"sort"
	"strings"

	"incident-search/internal/annotator"
	"incident-search/internal/domain"
)

// Unclassified labels records no annotator rule fires for.
const Unclassified = "unclassified"

// Count is one bucket of a distribution.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Report aggregates the corpus the way the incident dashboard charts it.
type Report struct {
	Total        int     `json:"total"`
	IssueTypes   []Count `json:"issue_types"`
	TopModels    []Count `json:"top_models"`
	Departments  []Count `json:"departments"`
	MonthlyTrend []Count `json:"monthly_trend"`
}

// Compute builds the report. Issue types follow annotator rule order with
// Unclassified last; a record counts once for every rule it triggers.
// topModels <= 0 keeps every model.
func Compute(records []domain.IncidentRecord, topModels int) Report {
	rules := annotator.Rules()
	issue := make(map[string]int, len(rules)+1)
	models := map[string]int{}
	depts := map[string]int{}
	months := map[string]int{}

	for _, r := range records {
		names := annotator.Classify(r.Description)
		if len(names) == 0 {
			issue[Unclassified]++
		}
		for _, n := range names {
			issue[n]++
		}
		models[orUnknown(r.Model)]++
		depts[orUnknown(r.Department)]++
		if !r.Date.IsZero() {
			months[r.Date.Format("2006-01")]++
		}
	}

	rep := Report{Total: len(records)}
	for _, rule := range rules {
		if c := issue[rule.Name]; c > 0 {
			rep.IssueTypes = append(rep.IssueTypes, Count{Label: rule.Name, Count: c})
		}
	}
	if c := issue[Unclassified]; c > 0 {
		rep.IssueTypes = append(rep.IssueTypes, Count{Label: Unclassified, Count: c})
	}

	rep.TopModels = byCount(models)
	if topModels > 0 && len(rep.TopModels) > topModels {
		rep.TopModels = rep.TopModels[:topModels]
	}
	rep.Departments = byCount(depts)

	for m, c := range months {
		rep.MonthlyTrend = append(rep.MonthlyTrend, Count{Label: m, Count: c})
	}
	sort.Slice(rep.MonthlyTrend, func(i, j int) bool { return rep.MonthlyTrend[i].Label < rep.MonthlyTrend[j].Label })
	return rep
}

// Summary renders a one-line overview for headers.
func (r Report) Summary() string {
	if r.Total == 0 {
		return "No incidents loaded."
	}
	parts := []string{fmt.Sprintf("%d incidents", r.Total)}
	if len(r.IssueTypes) > 0 {
		top := r.IssueTypes[0]
		for _, c := range r.IssueTypes[1:] {
			if c.Count > top.Count {
				top = c
			}
		}
		parts = append(parts, fmt.Sprintf("top issue: %s (%d)", top.Label, top.Count))
	}
	if len(r.TopModels) > 0 {
		parts = append(parts, fmt.Sprintf("most impacted model: %s (%d)", r.TopModels[0].Label, r.TopModels[0].Count))
	}
	if n := len(r.MonthlyTrend); n > 0 {
		parts = append(parts, fmt.Sprintf("%s to %s", r.MonthlyTrend[0].Label, r.MonthlyTrend[n-1].Label))
	}
	return strings.Join(parts, " · ")
}

func byCount(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Label: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
