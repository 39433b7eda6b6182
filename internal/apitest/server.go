// Package apitest runs an in-memory job matching backend for tests. It
// mirrors the REST contract the client relies on: bearer tokens with a
// refresh endpoint, a jobseeker feed, likes that open pending matches and
// recruiter-side match review.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleJobseeker = "jobseeker"
	RoleRecruiter = "recruiter"

	accessTTL = 15 * time.Minute
)

var signingKey = []byte("apitest-signing-key")

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	seq      int
	users    map[string]*user
	access   map[string]string
	refresh  map[string]string
	jobs     []*job
	likes    map[likeKey]string
	matches  []*match
	failures map[string]int

	refreshCalls int
	likeCalls    int
	failRefresh  bool
	failLikes    bool
}

type user struct {
	password string
	profile  profile
}

type profile struct {
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Role            string  `json:"role"`
	Avatar          *string `json:"avatar"`
	Skills          string  `json:"skills"`
	ExperienceYears *int    `json:"experience_years"`
	Bio             string  `json:"bio"`
	CompanyName     string  `json:"company_name"`
	PositionTitle   string  `json:"position_title"`
}

type job struct {
	ID                 int    `json:"id"`
	Title              string `json:"title"`
	CompanyName        string `json:"company_name"`
	Category           string `json:"category"`
	Governorate        string `json:"governorate"`
	Location           string `json:"location"`
	SalaryRange        string `json:"salary_range"`
	MinExperienceYears *int   `json:"min_experience_years"`
	MaxExperienceYears *int   `json:"max_experience_years"`
	Skills             string `json:"skills"`
	ShortDescription   string `json:"short_description"`
	Description        string `json:"description"`
	ImageURL           string `json:"image_url"`
	Tags               string `json:"tags"`
	CreatedAt          string `json:"created_at"`
	RecruiterName      string `json:"recruiter_name"`

	owner string
}

type match struct {
	ID            int    `json:"id"`
	JobID         int    `json:"job"`
	JobTitle      string `json:"job_title"`
	CompanyName   string `json:"company_name"`
	JobseekerName string `json:"jobseeker_name"`
	CreatedAt     string `json:"created_at"`
	Status        string `json:"status"`

	owner string
}

type likeKey struct {
	jobID  int
	seeker string
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		users:    make(map[string]*user),
		access:   make(map[string]string),
		refresh:  make(map[string]string),
		likes:    make(map[likeKey]string),
		failures: make(map[string]int),
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)

	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login/", s.handleLogin)
		r.Post("/auth/refresh/", s.handleRefresh)
		r.Post("/auth/register/", s.handleRegister)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/auth/me/", s.handleMe)
			r.Patch("/auth/me/", s.handleUpdateMe)

			r.Get("/jobs/", s.handleFeed)
			r.Put("/jobs/{id}/", s.handleUpdateJob)
			r.Delete("/jobs/{id}/", s.handleDeleteJob)
			r.Post("/jobs/{id}/like/", s.handleLike)

			r.Get("/my-jobs/", s.handleMyJobs)
			r.Post("/my-jobs/", s.handleCreateJob)

			r.Get("/matches/", s.handleMatches)
			r.Patch("/matches/{id}/", s.handleSetMatchStatus)
		})
	})

	return r
}

// AddUser registers an account directly.
func (s *Server) AddUser(username, password, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addUserLocked(username, password, profile{Name: username, Role: role})
}

func (s *Server) addUserLocked(username, password string, p profile) {
	s.seq++
	p.ID = s.seq
	if p.Name == "" {
		p.Name = username
	}
	s.users[username] = &user{password: password, profile: p}
}

// AddJob creates a posting owned by recruiter and returns its id.
func (s *Server) AddJob(recruiter, title, company string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := &job{Title: title, CompanyName: company, Description: title}
	s.insertJobLocked(recruiter, j)

	return j.ID
}

func (s *Server) insertJobLocked(owner string, j *job) {
	s.seq++
	j.ID = s.seq
	j.owner = owner
	j.RecruiterName = owner
	j.CreatedAt = stamp(s.seq)
	s.jobs = append(s.jobs, j)
}

// Login issues a token pair for username without going through HTTP.
func (s *Server) Login(username string) (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.issueLocked(username)
}

// ExpireAccessTokens invalidates every issued access token.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = make(map[string]string)
}

func (s *Server) FailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failRefresh = fail
}

func (s *Server) FailLikes(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failLikes = fail
}

// FailNextLikes makes the next n like calls fail with 503.
func (s *Server) FailNextLikes(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures["like"] = n
}

func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.refreshCalls
}

func (s *Server) LikeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.likeCalls
}

// Decisions returns the recorded like/dislike per job id for a jobseeker.
func (s *Server) Decisions(seeker string) map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int]string)
	for key, action := range s.likes {
		if key.seeker == seeker {
			out[key.jobID] = action
		}
	}
	return out
}

// MatchFor returns the match id created when seeker liked jobID, or 0.
func (s *Server) MatchFor(jobID int, seeker string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m := s.findMatchLocked(jobID, seeker); m != nil {
		return m.ID
	}
	return 0
}

func (s *Server) findMatchLocked(jobID int, seeker string) *match {
	for _, m := range s.matches {
		if m.JobID == jobID && m.JobseekerName == seeker {
			return m
		}
	}
	return nil
}

func (s *Server) issueLocked(username string) (string, string) {
	s.seq++
	access := signToken(username, s.seq, time.Now().Add(accessTTL))
	refresh := fmt.Sprintf("refresh-%s-%d", username, s.seq)

	s.access[access] = username
	s.refresh[refresh] = username

	return access, refresh
}

func signToken(username string, jti int, exp time.Time) string {
	claims := jwt.MapClaims{
		"sub": username,
		"jti": fmt.Sprintf("%d", jti),
		"exp": exp.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	return token
}

// stamp produces strictly increasing creation times so ordering by
// created_at matches insertion order.
func stamp(seq int) string {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(seq) * time.Second).Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func detail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func timeNowPlusTTL() time.Time {
	return time.Now().Add(accessTTL)
}
