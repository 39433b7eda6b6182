package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobswipe/jobswipe/internal/api"
)

func TestJobPayloadFromFlagsOverlaysChangedFlags(t *testing.T) {
	minYears, maxYears := 1, 3
	current := &api.Job{
		ID:                 4,
		Title:              "Backend developer",
		CompanyName:        "Acme",
		Location:           "Sfax",
		MinExperienceYears: &minYears,
		MaxExperienceYears: &maxYears,
		Description:        "Go and Postgres",
	}

	payload, err := jobPayloadFromFlags(commandWith(t, addJobFlags, "--title", "  Senior backend developer ", "--max-experience", "6"), payloadFromJob(current))
	require.NoError(t, err)

	assert.Equal(t, "Senior backend developer", payload.Title)
	assert.Equal(t, "Acme", payload.CompanyName)
	assert.Equal(t, "Sfax", payload.Location)
	assert.Equal(t, "Go and Postgres", payload.Description)
	require.NotNil(t, payload.MaxExperienceYears)
	assert.Equal(t, 6, *payload.MaxExperienceYears)
	assert.Equal(t, 1, *payload.MinExperienceYears)
}

func TestJobPayloadFromFlagsRejectsBadExperience(t *testing.T) {
	tests := map[string][]string{
		"negative":     {"--min-experience=-2"},
		"min over max": {"--min-experience", "5", "--max-experience", "2"},
	}

	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := jobPayloadFromFlags(commandWith(t, addJobFlags, args...), &api.JobPayload{})
			assert.Error(t, err)
		})
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	for _, raw := range []string{"", "0", "-3", "abc"} {
		_, err := parseID(raw)
		assert.Error(t, err, raw)
	}
}
