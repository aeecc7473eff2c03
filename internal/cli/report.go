package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/bookref/internal/models"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
)

// EvalQuery is one entry of an evaluation query file. ExpectBook, when set, is the
// book id or code that should appear among the results.
type EvalQuery struct {
	Query      string `yaml:"query"`
	TopK       int    `yaml:"top_k,omitempty"`
	BookFilter string `yaml:"book_filter,omitempty"`
	ExpectBook string `yaml:"expect_book,omitempty"`
}

type evalFile struct {
	Queries []EvalQuery `yaml:"queries"`
}

// Retriever answers one query.
type Retriever interface {
	Retrieve(ctx context.Context, req models.RetrieveRequest) (*models.RetrieveResponse, error)
}

// EvalResult is the outcome of one evaluation query.
type EvalResult struct {
	Query    EvalQuery
	Response *models.RetrieveResponse
	Err      error
}

// Hit reports whether the expected book was retrieved. ok is false when the query
// has no expectation or failed.
func (r EvalResult) Hit() (hit, ok bool) {
	if r.Query.ExpectBook == "" || r.Err != nil || r.Response == nil {
		return false, false
	}
	for _, p := range r.Response.Results {
		if bookMatches(p.BookID, r.Query.ExpectBook) {
			return true, true
		}
	}
	return false, true
}

func bookMatches(bookID, want string) bool {
	id, want := strings.ToLower(bookID), strings.ToLower(want)
	return id == want || strings.HasPrefix(id, want+"-")
}

// EvalSummary aggregates a set of evaluation results.
type EvalSummary struct {
	Queries       int
	Errors        int
	NoResults     int
	Relaxed       int
	Expectations  int
	Hits          int
	MeanTopScore  float64
	MeanLatencyMS float64
	ByType        map[string]int
}

// HitRate is the share of queries with an expectation whose book was retrieved.
func (s EvalSummary) HitRate() float64 {
	if s.Expectations == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Expectations)
}

// LoadEvalQueries reads a YAML file with a top-level "queries" list.
func LoadEvalQueries(path string) ([]EvalQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}
	var f evalFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse queries: %w", err)
	}
	out := f.Queries[:0]
	for _, q := range f.Queries {
		if strings.TrimSpace(q.Query) != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("query file has no queries")
	}
	return out, nil
}

// RunEval runs every query in order. A failing query is recorded, not fatal; a
// cancelled context stops the run.
func RunEval(ctx context.Context, r Retriever, queries []EvalQuery) ([]EvalResult, error) {
	results := make([]EvalResult, 0, len(queries))
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		resp, err := r.Retrieve(ctx, models.RetrieveRequest{Query: q.Query, TopK: q.TopK, BookFilter: q.BookFilter})
		results = append(results, EvalResult{Query: q, Response: resp, Err: err})
	}
	return results, nil
}

// Summarize aggregates results.
func Summarize(results []EvalResult) EvalSummary {
	s := EvalSummary{Queries: len(results), ByType: make(map[string]int)}
	var scored, answered int
	var scoreSum, latencySum float64
	for _, r := range results {
		if hit, ok := r.Hit(); ok {
			s.Expectations++
			if hit {
				s.Hits++
			}
		}
		if r.Err != nil || r.Response == nil {
			s.Errors++
			continue
		}
		resp := r.Response
		answered++
		latencySum += float64(resp.QueryTime)
		s.ByType[resp.QueryType]++
		if resp.NoResults {
			s.NoResults++
		}
		if resp.Relaxed {
			s.Relaxed++
		}
		if len(resp.Results) > 0 {
			scored++
			scoreSum += resp.Results[0].Score
		}
	}
	if scored > 0 {
		s.MeanTopScore = scoreSum / float64(scored)
	}
	if answered > 0 {
		s.MeanLatencyMS = latencySum / float64(answered)
	}
	return s
}

// WriteEvalReport writes the per-query results and their summary to an .xlsx file.
func WriteEvalReport(path string, results []EvalResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	header := []interface{}{
		"Query", "Type", "Book filter", "Threshold", "Relaxed", "Results",
		"Top score", "Top source", "Expected book", "Hit", "Time (ms)", "Error",
	}
	if err := setRow(f, resultsSheet, 1, header); err != nil {
		return err
	}
	for i, r := range results {
		if err := setRow(f, resultsSheet, i+2, resultRow(r)); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(resultsSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	_ = f.SetColWidth(resultsSheet, "A", "A", 50)
	_ = f.SetColWidth(resultsSheet, "H", "H", 40)

	s := Summarize(results)
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Queries", s.Queries},
		{"Errors", s.Errors},
		{"No results", s.NoResults},
		{"Relaxed", s.Relaxed},
		{"Mean top score", round3(s.MeanTopScore)},
		{"Mean latency (ms)", round3(s.MeanLatencyMS)},
		{"Expectations", s.Expectations},
		{"Hit rate", round3(s.HitRate())},
	}
	for _, t := range []string{"concept", "algorithm", "implementation", "theory", "comparison", "generic"} {
		if n := s.ByType[t]; n > 0 {
			rows = append(rows, []interface{}{"Type " + t, n})
		}
	}
	for i, row := range rows {
		if err := setRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(summarySheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 24)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func resultRow(r EvalResult) []interface{} {
	row := []interface{}{r.Query.Query, "", r.Query.BookFilter, "", "", 0, "", "", r.Query.ExpectBook, "", "", ""}
	if hit, ok := r.Hit(); ok {
		row[9] = hit
	}
	if r.Err != nil || r.Response == nil {
		if r.Err != nil {
			row[11] = r.Err.Error()
		}
		return row
	}
	resp := r.Response
	row[1] = resp.QueryType
	row[2] = resp.BookFilter
	row[3] = resp.Threshold
	row[4] = resp.Relaxed
	row[5] = len(resp.Results)
	if len(resp.Results) > 0 {
		row[6] = resp.Results[0].Score
		row[7] = resp.Results[0].Source
	}
	row[10] = resp.QueryTime
	return row
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func round3(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}
