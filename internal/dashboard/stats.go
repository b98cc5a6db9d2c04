package dashboard

import (
	"math"

	"campus/portal/internal/model"
)

type SubjectAttendance struct {
	Subject string  `json:"subject"`
	Present int     `json:"present"`
	Total   int     `json:"total"`
	Rate    float64 `json:"rate"`
}

// MarksRow is one bar of the marks chart.
type MarksRow struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// AttendanceRate is the present share in percent, one decimal.
func AttendanceRate(records []model.AttendanceRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	present := 0
	for _, r := range records {
		if r.Status == model.Present {
			present++
		}
	}
	return round1(float64(present) / float64(len(records)) * 100)
}

// AverageMarks is the mean of per-record percentages, one decimal.
func AverageMarks(records []model.MarksRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum float64
	for _, r := range records {
		sum += r.Percentage()
	}
	return round1(sum / float64(len(records)))
}

// AttendanceBySubject groups records by subject in order of first appearance.
func AttendanceBySubject(records []model.AttendanceRecord) []SubjectAttendance {
	index := map[string]int{}
	out := []SubjectAttendance{}
	for _, r := range records {
		i, ok := index[r.Subject]
		if !ok {
			i = len(out)
			index[r.Subject] = i
			out = append(out, SubjectAttendance{Subject: r.Subject})
		}
		out[i].Total++
		if r.Status == model.Present {
			out[i].Present++
		}
	}
	for i := range out {
		out[i].Rate = round1(float64(out[i].Present) / float64(out[i].Total) * 100)
	}
	return out
}

func MarksChart(records []model.MarksRecord) []MarksRow {
	out := make([]MarksRow, 0, len(records))
	for _, r := range records {
		out = append(out, MarksRow{
			Name:       r.Subject + " (" + r.ExamType + ")",
			Percentage: round1(r.Percentage()),
		})
	}
	return out
}

// unique returns the non-empty values of key in order of first appearance.
func unique[T any](items []T, key func(T) string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, item := range items {
		v := key(item)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
