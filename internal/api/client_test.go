package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jobswipe/jobswipe/internal/api"
	"github.com/jobswipe/jobswipe/internal/apitest"
)

// memoryTokens is a minimal token source that refreshes through the client.
type memoryTokens struct {
	mu        sync.Mutex
	client    *api.Client
	access    string
	refresh   string
	refreshes int
}

func (m *memoryTokens) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.access
}

func (m *memoryTokens) Refresh(ctx context.Context, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refreshes++
	tokens, err := m.client.RefreshAccess(ctx, m.refresh)
	if err != nil {
		return "", err
	}
	m.access = tokens.Access
	return m.access, nil
}

func newClient(t *testing.T, srv *apitest.Server, username string) (*api.Client, *memoryTokens) {
	t.Helper()

	client := api.New(zaptest.NewLogger(t), srv.URL)
	tokens := &memoryTokens{client: client}
	if username != "" {
		tokens.access, tokens.refresh = srv.Login(username)
	}
	client.Auth = tokens

	return client, tokens
}

func TestLoginReturnsTokenPair(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("amal", "secret", apitest.RoleJobseeker)

	client, _ := newClient(t, srv, "")

	tokens, err := client.Login(context.Background(), "amal", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.Access)
	assert.NotEmpty(t, tokens.Refresh)

	_, err = client.Login(context.Background(), "amal", "wrong")
	assert.ErrorIs(t, err, api.ErrAuth)
}

func TestExpiredTokenIsRefreshedOnce(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("amal", "secret", apitest.RoleJobseeker)
	srv.AddJob("hr", "Go developer", "Acme")

	client, tokens := newClient(t, srv, "amal")
	ctx := context.Background()

	jobs, err := client.Feed(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 0, srv.RefreshCalls())

	srv.ExpireAccessTokens()

	jobs, err = client.Feed(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
	assert.Equal(t, 1, srv.RefreshCalls())
	assert.Equal(t, 1, tokens.refreshes)
}

func TestFailedRefreshSurfacesAuthError(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("amal", "secret", apitest.RoleJobseeker)

	client, tokens := newClient(t, srv, "amal")
	srv.ExpireAccessTokens()
	srv.FailRefresh(true)

	_, err := client.Feed(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrAuth)
	assert.Equal(t, 1, tokens.refreshes)

	apiErr, ok := api.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "/api/jobs/", apiErr.Path)
}

func TestRegisterValidationErrors(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("amal", "secret", apitest.RoleJobseeker)

	client, _ := newClient(t, srv, "")

	_, err := client.Register(context.Background(), &api.Registration{Username: "amal", Role: "admin"})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrValidation)

	apiErr, ok := api.AsError(err)
	require.True(t, ok)
	fields := apiErr.Fields()
	assert.Equal(t, []string{"A user with that username already exists."}, fields["username"])
	assert.Equal(t, []string{"This field is required."}, fields["password"])
	assert.Equal(t, []string{`"admin" is not a valid choice.`}, fields["role"])
}

func TestRegisterThenLogin(t *testing.T) {
	srv := apitest.New(t)
	client, _ := newClient(t, srv, "")
	ctx := context.Background()

	years := 3
	profile, err := client.Register(ctx, &api.Registration{
		Username:        "sami",
		Email:           "sami@example.com",
		Password:        "pw",
		Role:            "jobseeker",
		Skills:          "go",
		ExperienceYears: &years,
	})
	require.NoError(t, err)
	assert.Equal(t, "jobseeker", profile.Role)

	_, err = client.Login(ctx, "sami", "pw")
	assert.NoError(t, err)
}

func TestUpdateMe(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("amal", "secret", apitest.RoleJobseeker)
	client, _ := newClient(t, srv, "amal")
	ctx := context.Background()

	name := "Amal B."
	profile, err := client.UpdateMe(ctx, &api.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Amal B.", profile.Name)
	assert.Equal(t, "jobseeker", profile.Role)

	avatar := filepath.Join(t.TempDir(), "me.png")
	require.NoError(t, os.WriteFile(avatar, []byte("\x89PNG"), 0o600))

	bio := "Gopher"
	years := 5
	profile, err = client.UpdateMe(ctx, &api.ProfileUpdate{Bio: &bio, ExperienceYears: &years, AvatarFile: avatar})
	require.NoError(t, err)
	require.NotNil(t, profile.Avatar)
	assert.Equal(t, "/media/avatars/me.png", *profile.Avatar)
	assert.Equal(t, "Gopher", profile.Bio)
	require.NotNil(t, profile.ExperienceYears)
	assert.Equal(t, 5, *profile.ExperienceYears)
	assert.Equal(t, "Amal B.", profile.Name)

	_, err = client.UpdateMe(ctx, &api.ProfileUpdate{AvatarFile: filepath.Join(t.TempDir(), "missing.png")})
	assert.Error(t, err)
}

func TestLikeOpensMatchThatRecruiterAccepts(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("amal", "secret", apitest.RoleJobseeker)
	srv.AddUser("hr", "secret", apitest.RoleRecruiter)
	jobID := srv.AddJob("hr", "Go developer", "Acme")
	ctx := context.Background()

	seeker, _ := newClient(t, srv, "amal")
	recruiter, _ := newClient(t, srv, "hr")

	result, err := seeker.Decide(ctx, jobID, api.ActionLike)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, api.ActionLike, result.Action)

	pending, err := recruiter.Matches(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, api.MatchPending, pending[0].Status)
	assert.Equal(t, jobID, pending[0].JobID)
	assert.Equal(t, "amal", pending[0].JobseekerName)

	visible, err := seeker.Matches(ctx)
	require.NoError(t, err)
	assert.Empty(t, visible)

	updated, err := recruiter.SetMatchStatus(ctx, pending[0].ID, api.MatchAccepted)
	require.NoError(t, err)
	assert.Equal(t, api.MatchAccepted, updated.Status)

	visible, err = seeker.Matches(ctx)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, pending[0].ID, visible[0].ID)

	_, err = seeker.SetMatchStatus(ctx, pending[0].ID, api.MatchRejected)
	apiErr, ok := api.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "You can only answer likes on your own jobs.", apiErr.Detail())
}

func TestRecruiterJobLifecycle(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("hr", "secret", apitest.RoleRecruiter)
	client, _ := newClient(t, srv, "hr")
	ctx := context.Background()

	minYears := 2
	created, err := client.CreateJob(ctx, &api.JobPayload{
		Title:              "SRE",
		CompanyName:        "Acme",
		Description:        "On call, sometimes",
		MinExperienceYears: &minYears,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "2+ years", created.Experience())

	_, err = client.CreateJob(ctx, &api.JobPayload{Title: "No company"})
	assert.ErrorIs(t, err, api.ErrValidation)

	updated, err := client.UpdateJob(ctx, created.ID, &api.JobPayload{Title: "Senior SRE", CompanyName: "Acme", Description: "On call"})
	require.NoError(t, err)
	assert.Equal(t, "Senior SRE", updated.Title)

	mine, err := client.MyJobs(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Senior SRE", mine[0].Title)

	require.NoError(t, client.DeleteJob(ctx, created.ID))

	mine, err = client.MyJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestListUnwrapsPaginatedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count": 2, "next": null, "results": [
			{"id": 7, "title": "Go developer", "company_name": "Acme", "min_experience_years": 1},
			{"id": 8, "title": "SRE", "company_name": "Initech"}
		]}`))
	}))
	t.Cleanup(srv.Close)

	client := api.New(zaptest.NewLogger(t), srv.URL)

	jobs, err := client.Feed(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, 7, jobs[0].ID)
	require.NotNil(t, jobs[0].MinExperienceYears)
	assert.Equal(t, 1, *jobs[0].MinExperienceYears)
	assert.Equal(t, "Initech", jobs[1].CompanyName)
}

func TestTransportErrorIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := api.New(zaptest.NewLogger(t), url)

	_, err := client.Feed(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrNetwork)
	assert.False(t, errors.Is(err, api.ErrAuth))
}
