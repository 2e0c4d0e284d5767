package formatter

import (
	"encoding/json"

	"github.com/yildizm/logsift/internal/common"
)

// jsonFormatter emits records as a plain array so the output can be fed
// back into the recommend command
type jsonFormatter struct{}

// NewJSON creates a new JSON formatter
func NewJSON() Formatter {
	return &jsonFormatter{}
}

func (f *jsonFormatter) Format(records []common.Record) ([]byte, error) {
	if records == nil {
		records = []common.Record{}
	}
	return json.MarshalIndent(records, "", "  ")
}

// RecommendationOutput pairs a record with its advice
type RecommendationOutput struct {
	Record         common.Record         `json:"record"`
	Recommendation common.Recommendation `json:"recommendation"`
}

func (f *jsonFormatter) FormatRecommendations(records []common.Record, recs []common.Recommendation) ([]byte, error) {
	out := make([]RecommendationOutput, 0, len(records))
	for i, r := range records {
		out = append(out, RecommendationOutput{Record: r, Recommendation: recommendationAt(recs, i)})
	}
	return json.MarshalIndent(out, "", "  ")
}
