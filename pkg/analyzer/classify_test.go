package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   ClassifyInput
		want Status
	}{
		{"unparseable wins over everything", ClassifyInput{Parsed: false, HasCandidates: true, Gap: 9, Threshold: 3, Violated: true}, StatusUnknown},
		{"no candidates", ClassifyInput{Parsed: true, HasCandidates: false}, StatusWarning},
		{"over threshold", ClassifyInput{Parsed: true, HasCandidates: true, Gap: 4, Threshold: 3}, StatusOutdated},
		{"over threshold with violation", ClassifyInput{Parsed: true, HasCandidates: true, Gap: 4, Threshold: 3, Violated: true}, StatusOutdated},
		{"at threshold", ClassifyInput{Parsed: true, HasCandidates: true, Gap: 3, Threshold: 3}, StatusWarning},
		{"small gap", ClassifyInput{Parsed: true, HasCandidates: true, Gap: 1, Threshold: 3}, StatusWarning},
		{"violation only", ClassifyInput{Parsed: true, HasCandidates: true, Threshold: 3, Violated: true}, StatusWarning},
		{"zero threshold", ClassifyInput{Parsed: true, HasCandidates: true, Gap: 1, Threshold: 0}, StatusOutdated},
		{"up to date", ClassifyInput{Parsed: true, HasCandidates: true, Threshold: 3}, StatusUpToDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
		})
	}
}

func TestSummarizeAndExitCode(t *testing.T) {
	results := []AnalysisResult{
		{Image: "a", Status: StatusUpToDate},
		{Image: "b", Status: StatusWarning},
		{Image: "c", Status: StatusWarning},
		{Image: "d", Status: StatusUnknown},
	}

	r := NewReport(results, []string{"python:3.9"})
	assert.Equal(t, Summary{Total: 4, UpToDate: 1, Warnings: 2, Unknown: 1, Ignored: 1}, r.Summary)
	assert.Equal(t, 0, r.ExitCode())
	assert.Len(t, r.ByStatus(StatusWarning), 2)
	assert.NotEmpty(t, r.RunID)

	results = append(results, AnalysisResult{Image: "e", Status: StatusOutdated})
	assert.Equal(t, 1, NewReport(results, nil).ExitCode())

	empty := NewReport(nil, nil)
	assert.NotNil(t, empty.Results)
	assert.NotNil(t, empty.Ignored)
}
