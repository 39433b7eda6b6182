package api

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleJobs() *Jobs {
	return NewJobs([]*Job{
		{ID: 1, Title: "Go developer", CompanyName: "Acme"},
		{ID: 2, Title: "SRE", CompanyName: " acme "},
		{ID: 3, Title: "Data engineer", CompanyName: "Initech"},
		{ID: 4, Title: "QA", CompanyName: "Globex"},
	})
}

func TestExcludeKeepsFeedOrder(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		targets  []string
		excluded []int
		left     []int
	}{
		{name: "by id", field: JobIDField, targets: []string{"3", "99"}, excluded: []int{3}, left: []int{1, 2, 4}},
		{name: "company ignores case and spaces", field: JobCompanyField, targets: []string{"ACME"}, excluded: []int{1, 2}, left: []int{3, 4}},
		{name: "no targets", field: JobIDField, targets: nil, excluded: nil, left: []int{1, 2, 3, 4}},
		{name: "unknown field", field: "Salary", targets: []string{"x"}, excluded: nil, left: []int{1, 2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := sampleJobs()
			assert.Equal(t, tt.excluded, jobs.Exclude(tt.field, tt.targets))
			assert.Equal(t, tt.left, jobs.IDs())
		})
	}
}

func TestReportByCompany(t *testing.T) {
	report := sampleJobs().ReportByCompany()

	require.Len(t, report["Acme"], 1)
	assert.Equal(t, "Go developer", report["Acme"][0]["title"])
	assert.Equal(t, "3", report["Initech"][0]["id"])
}

func TestDumpToTmpFile(t *testing.T) {
	jobs := sampleJobs()

	name, err := jobs.DumpToTmpFile()
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(name) })

	data, err := os.ReadFile(name)
	require.NoError(t, err)

	var back Jobs
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, jobs.IDs(), back.IDs())
	assert.Equal(t, "SRE", back.FindByID(2).Title)
	assert.Nil(t, back.FindByID(42))
}

func TestParseAction(t *testing.T) {
	for in, want := range map[string]Action{"like": ActionLike, " Dislike ": ActionDislike} {
		got, err := ParseAction(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseAction("superlike")
	assert.Error(t, err)
}
