package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/yildizm/logsift/internal/common"
)

// csvFormatter formats records as CSV
type csvFormatter struct{}

// NewCSV creates a new CSV formatter
func NewCSV() Formatter {
	return &csvFormatter{}
}

func (f *csvFormatter) Format(records []common.Record) ([]byte, error) {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Timestamp,
			r.Level.String(),
			r.Source,
			escapeCSVString(r.Message),
			r.Problem,
		})
	}
	return writeCSV([]string{"Timestamp", "Level", "Source", "Message", "Problem"}, rows)
}

func (f *csvFormatter) FormatRecommendations(records []common.Record, recs []common.Recommendation) ([]byte, error) {
	rows := make([][]string, 0, len(records))
	for i, r := range records {
		rec := recommendationAt(recs, i)
		created := ""
		if !rec.CreationDate.IsZero() {
			created = rec.CreationDate.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []string{
			r.Timestamp,
			r.Level.String(),
			r.Source,
			escapeCSVString(r.Message),
			fmt.Sprintf("%.2f", rec.RelevanceScore),
			rec.GeneratedBy,
			created,
			escapeCSVString(rec.Content),
		})
	}
	headers := []string{"Timestamp", "Level", "Source", "Message", "Relevance", "Generated By", "Created", "Recommendation"}
	return writeCSV(headers, rows)
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var b bytes.Buffer
	writer := csv.NewWriter(&b)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return b.Bytes(), nil
}

// escapeCSVString keeps each record on one line
func escapeCSVString(s string) string {
	return singleLine(s, 0)
}
