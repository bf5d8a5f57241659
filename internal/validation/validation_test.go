package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidDate(t *testing.T) {
	tests := []struct {
		name  string
		date  string
		valid bool
	}{
		{name: "iso date", date: "2025-01-10", valid: true},
		{name: "leap day", date: "2024-02-29", valid: true},
		{name: "not a leap year", date: "2025-02-29", valid: false},
		{name: "us format", date: "01/10/2025", valid: false},
		{name: "with time", date: "2025-01-10T00:00:00Z", valid: false},
		{name: "empty string", date: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidDate(tt.date)
			if got != tt.valid {
				t.Fatalf("IsValidDate(%q) = %v, want %v", tt.date, got, tt.valid)
			}
		})
	}
}

func TestIsValidID(t *testing.T) {
	assert.True(t, IsValidID("L88917AVBK2S5"))
	assert.True(t, IsValidID("TMoK_ogh6rH1o4Zn"))
	assert.False(t, IsValidID(""))
	assert.False(t, IsValidID("L1; DROP TABLE"))
}

func TestStruct(t *testing.T) {
	cutoff := 18
	badCutoff := 24

	tests := []struct {
		name    string
		query   ReportQuery
		wantErr string
	}{
		{name: "empty query", query: ReportQuery{}},
		{
			name: "full query",
			query: ReportQuery{
				Date:           "2025-01-10",
				WeekStart:      "sunday",
				IgnoreDates:    []string{"2025-01-08"},
				LocationIDs:    []string{"L1", "L2"},
				SimulateMember: "TM1",
				SimulateCutoff: &cutoff,
			},
		},
		{name: "custom window", query: ReportQuery{From: "2025-01-01", To: "2025-01-15"}},
		{name: "from without to", query: ReportQuery{From: "2025-01-01"}, wantErr: "To: required_with"},
		{name: "bad date", query: ReportQuery{Date: "10.01.2025"}, wantErr: "Date: localdate"},
		{name: "bad week start", query: ReportQuery{WeekStart: "9"}, wantErr: "WeekStart: weekstart"},
		{name: "bad ignore date", query: ReportQuery{IgnoreDates: []string{"yesterday"}}, wantErr: "IgnoreDates[0]: localdate"},
		{name: "bad cutoff", query: ReportQuery{SimulateMember: "TM1", SimulateCutoff: &badCutoff}, wantErr: "SimulateCutoff: max"},
		{name: "cutoff without member", query: ReportQuery{SimulateCutoff: &cutoff}, wantErr: "SimulateMember: required_with"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.query)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
