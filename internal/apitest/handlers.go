package apitest

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

type ctxKey struct{}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		s.mu.Lock()
		username, ok := s.access[token]
		s.mu.Unlock()

		if token == "" || !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, username)))
	})
}

func currentUser(r *http.Request) string {
	username, _ := r.Context().Value(ctxKey{}).(string)
	return username
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		detail(w, http.StatusBadRequest, "malformed body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[body.Username]
	if !ok || u.password != body.Password {
		detail(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}

	access, refresh := s.issueLocked(body.Username)
	writeJSON(w, http.StatusOK, map[string]string{"access": access, "refresh": refresh})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Refresh string `json:"refresh"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshCalls++

	username, ok := s.refresh[body.Refresh]
	if s.failRefresh || !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}

	s.seq++
	access := signToken(username, s.seq, timeNowPlusTTL())
	s.access[access] = username

	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username        string `json:"username"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		Role            string `json:"role"`
		CompanyName     string `json:"company_name"`
		PositionTitle   string `json:"position_title"`
		Skills          string `json:"skills"`
		Bio             string `json:"bio"`
		ExperienceYears *int   `json:"experience_years"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		detail(w, http.StatusBadRequest, "malformed body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	errs := map[string][]string{}
	if body.Username == "" {
		errs["username"] = []string{"This field is required."}
	} else if _, exists := s.users[body.Username]; exists {
		errs["username"] = []string{"A user with that username already exists."}
	}
	if body.Password == "" {
		errs["password"] = []string{"This field is required."}
	}
	if body.Role != RoleJobseeker && body.Role != RoleRecruiter {
		errs["role"] = []string{`"` + body.Role + `" is not a valid choice.`}
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	s.addUserLocked(body.Username, body.Password, profile{
		Name:            body.Username,
		Email:           body.Email,
		Role:            body.Role,
		Skills:          body.Skills,
		Bio:             body.Bio,
		ExperienceYears: body.ExperienceYears,
		CompanyName:     body.CompanyName,
		PositionTitle:   body.PositionTitle,
	})

	writeJSON(w, http.StatusCreated, map[string]string{"username": body.Username, "email": body.Email})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, s.users[currentUser(r)].profile)
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.users[currentUser(r)]
	updated := u.profile

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			detail(w, http.StatusBadRequest, "malformed form")
			return
		}

		for key, values := range r.MultipartForm.Value {
			if len(values) == 0 {
				continue
			}
			applyProfileField(&updated, key, values[0])
		}

		if files := r.MultipartForm.File["avatar"]; len(files) > 0 {
			avatar := "/media/avatars/" + filepath.Base(files[0].Filename)
			updated.Avatar = &avatar
		}
	} else if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
		detail(w, http.StatusBadRequest, "malformed body")
		return
	}

	updated.ID = u.profile.ID
	updated.Role = u.profile.Role
	u.profile = updated

	writeJSON(w, http.StatusOK, u.profile)
}

func applyProfileField(p *profile, key, value string) {
	switch key {
	case "name":
		p.Name = value
	case "email":
		p.Email = value
	case "skills":
		p.Skills = value
	case "bio":
		p.Bio = value
	case "company_name":
		p.CompanyName = value
	case "position_title":
		p.PositionTitle = value
	case "experience_years":
		if n, err := strconv.Atoi(value); err == nil {
			p.ExperienceYears = &n
		}
	}
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := currentUser(r)
	role := s.users[username].profile.Role

	out := make([]*job, 0, len(s.jobs))
	for i := len(s.jobs) - 1; i >= 0; i-- {
		j := s.jobs[i]
		switch role {
		case RoleJobseeker:
			if s.likes[likeKey{jobID: j.ID, seeker: username}] == "dislike" {
				continue
			}
		case RoleRecruiter:
			if j.owner != username {
				continue
			}
		default:
			continue
		}
		out = append(out, j)
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMyJobs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := currentUser(r)
	if s.users[username].profile.Role != RoleRecruiter {
		detail(w, http.StatusForbidden, "Only recruiters can manage job offers.")
		return
	}

	out := make([]*job, 0)
	for i := len(s.jobs) - 1; i >= 0; i-- {
		if s.jobs[i].owner == username {
			out = append(out, s.jobs[i])
		}
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var j job
	if err := json.NewDecoder(r.Body).Decode(&j); err != nil {
		detail(w, http.StatusBadRequest, "malformed body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	username := currentUser(r)
	if s.users[username].profile.Role != RoleRecruiter {
		detail(w, http.StatusForbidden, "Only recruiters can create jobs.")
		return
	}

	errs := map[string][]string{}
	if j.Title == "" {
		errs["title"] = []string{"This field is required."}
	}
	if j.CompanyName == "" {
		errs["company_name"] = []string{"This field is required."}
	}
	if j.Description == "" {
		errs["description"] = []string{"This field is required."}
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	s.insertJobLocked(username, &j)
	writeJSON(w, http.StatusCreated, j)
}

func (s *Server) jobFromPath(w http.ResponseWriter, r *http.Request) *job {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		detail(w, http.StatusNotFound, "Not found.")
		return nil
	}

	for _, j := range s.jobs {
		if j.ID == id {
			return j
		}
	}

	detail(w, http.StatusNotFound, "Not found.")
	return nil
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := s.jobFromPath(w, r)
	if j == nil {
		return
	}

	if j.owner != currentUser(r) {
		detail(w, http.StatusForbidden, "You can only edit your own jobs.")
		return
	}

	updated := *j
	if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
		detail(w, http.StatusBadRequest, "malformed body")
		return
	}
	updated.ID, updated.owner, updated.CreatedAt = j.ID, j.owner, j.CreatedAt
	*j = updated

	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := s.jobFromPath(w, r)
	if j == nil {
		return
	}

	if j.owner != currentUser(r) {
		detail(w, http.StatusForbidden, "You can only delete your own jobs.")
		return
	}

	kept := s.jobs[:0]
	for _, other := range s.jobs {
		if other.ID != j.ID {
			kept = append(kept, other)
		}
	}
	s.jobs = kept

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string `json:"action"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.likeCalls++

	if s.failLikes || s.failures["like"] > 0 {
		if s.failures["like"] > 0 {
			s.failures["like"]--
		}
		detail(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}

	username := currentUser(r)
	if s.users[username].profile.Role != RoleJobseeker {
		detail(w, http.StatusForbidden, "Only jobseekers can like jobs.")
		return
	}

	j := s.jobFromPath(w, r)
	if j == nil {
		return
	}

	if body.Action != "like" && body.Action != "dislike" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"action": {`"` + body.Action + `" is not a valid choice.`},
		})
		return
	}

	s.likes[likeKey{jobID: j.ID, seeker: username}] = body.Action

	matched := false
	if body.Action == "like" {
		matched = true
		if s.findMatchLocked(j.ID, username) == nil {
			s.seq++
			s.matches = append(s.matches, &match{
				ID:            s.seq,
				JobID:         j.ID,
				JobTitle:      j.Title,
				CompanyName:   j.CompanyName,
				JobseekerName: username,
				CreatedAt:     stamp(s.seq),
				Status:        "pending",
				owner:         j.owner,
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"action":  body.Action,
		"matched": matched,
	})
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := currentUser(r)
	role := s.users[username].profile.Role

	out := make([]*match, 0)
	for i := len(s.matches) - 1; i >= 0; i-- {
		m := s.matches[i]
		switch role {
		case RoleJobseeker:
			if m.JobseekerName == username && m.Status == "accepted" {
				out = append(out, m)
			}
		case RoleRecruiter:
			if m.owner == username && m.Status != "rejected" {
				out = append(out, m)
			}
		}
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetMatchStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()

	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	var m *match
	for _, candidate := range s.matches {
		if candidate.ID == id {
			m = candidate
			break
		}
	}

	if m == nil {
		detail(w, http.StatusNotFound, "Not found.")
		return
	}

	if m.owner != currentUser(r) {
		detail(w, http.StatusForbidden, "You can only answer likes on your own jobs.")
		return
	}

	if body.Status != "accepted" && body.Status != "rejected" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"status": {`"` + body.Status + `" is not a valid choice.`},
		})
		return
	}

	m.Status = body.Status
	writeJSON(w, http.StatusOK, m)
}
