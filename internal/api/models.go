package api

import (
	"fmt"
	"strings"
)

type Action string

const (
	ActionLike    Action = "like"
	ActionDislike Action = "dislike"
)

func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionLike:
		return ActionLike, nil
	case ActionDislike:
		return ActionDislike, nil
	default:
		return "", fmt.Errorf("invalid action %q: expected like or dislike", s)
	}
}

type MatchStatus string

const (
	MatchPending  MatchStatus = "pending"
	MatchAccepted MatchStatus = "accepted"
	MatchRejected MatchStatus = "rejected"
)

// Job is a job offer as served by the backend.
type Job struct {
	ID                 int    `json:"id"`
	Title              string `json:"title"`
	CompanyName        string `json:"company_name"`
	Category           string `json:"category,omitempty"`
	Governorate        string `json:"governorate,omitempty"`
	Location           string `json:"location,omitempty"`
	SalaryRange        string `json:"salary_range,omitempty"`
	MinExperienceYears *int   `json:"min_experience_years,omitempty"`
	MaxExperienceYears *int   `json:"max_experience_years,omitempty"`
	Skills             string `json:"skills,omitempty"`
	ShortDescription   string `json:"short_description,omitempty"`
	Description        string `json:"description,omitempty"`
	ImageURL           string `json:"image_url,omitempty"`
	Tags               string `json:"tags,omitempty"`
	CreatedAt          string `json:"created_at,omitempty"`
	RecruiterName      string `json:"recruiter_name,omitempty"`
}

func (j *Job) CardID() int { return j.ID }

// Experience renders the experience bounds, e.g. "2-5 years" or "3+ years".
func (j *Job) Experience() string {
	switch {
	case j.MinExperienceYears != nil && j.MaxExperienceYears != nil:
		return fmt.Sprintf("%d-%d years", *j.MinExperienceYears, *j.MaxExperienceYears)
	case j.MinExperienceYears != nil:
		return fmt.Sprintf("%d+ years", *j.MinExperienceYears)
	case j.MaxExperienceYears != nil:
		return fmt.Sprintf("up to %d years", *j.MaxExperienceYears)
	default:
		return ""
	}
}

// JobPayload is the body for creating or updating a posting. Zero values
// are omitted, so it also serves as a partial update.
type JobPayload struct {
	Title              string `json:"title,omitempty"`
	CompanyName        string `json:"company_name,omitempty"`
	Category           string `json:"category,omitempty"`
	Governorate        string `json:"governorate,omitempty"`
	Location           string `json:"location,omitempty"`
	SalaryRange        string `json:"salary_range,omitempty"`
	MinExperienceYears *int   `json:"min_experience_years,omitempty"`
	MaxExperienceYears *int   `json:"max_experience_years,omitempty"`
	Skills             string `json:"skills,omitempty"`
	ShortDescription   string `json:"short_description,omitempty"`
	Description        string `json:"description,omitempty"`
	Tags               string `json:"tags,omitempty"`
	ImageURL           string `json:"image_url,omitempty"`
}

type Match struct {
	ID            int         `json:"id"`
	JobID         int         `json:"job"`
	JobTitle      string      `json:"job_title"`
	CompanyName   string      `json:"company_name"`
	JobseekerName string      `json:"jobseeker_name"`
	CreatedAt     string      `json:"created_at"`
	Status        MatchStatus `json:"status"`
}

func (m *Match) CardID() int { return m.ID }

type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type Profile struct {
	ID              int     `json:"id,omitempty"`
	Name            string  `json:"name,omitempty"`
	Username        string  `json:"username,omitempty"`
	Email           string  `json:"email,omitempty"`
	Role            string  `json:"role,omitempty"`
	Avatar          *string `json:"avatar,omitempty"`
	Skills          string  `json:"skills,omitempty"`
	ExperienceYears *int    `json:"experience_years,omitempty"`
	Bio             string  `json:"bio,omitempty"`
	CompanyName     string  `json:"company_name,omitempty"`
	PositionTitle   string  `json:"position_title,omitempty"`
}

// DisplayName prefers the profile name and falls back to the username.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	return p.Username
}

type Registration struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	Role            string `json:"role"`
	CompanyName     string `json:"company_name,omitempty"`
	PositionTitle   string `json:"position_title,omitempty"`
	Skills          string `json:"skills,omitempty"`
	Bio             string `json:"bio,omitempty"`
	ExperienceYears *int   `json:"experience_years,omitempty"`
}

// ProfileUpdate carries only the fields to change. AvatarFile switches the
// request to multipart; ClearAvatar sends an explicit null.
type ProfileUpdate struct {
	Name            *string
	Email           *string
	Skills          *string
	Bio             *string
	ExperienceYears *int
	CompanyName     *string
	PositionTitle   *string
	AvatarURL       *string
	AvatarFile      string
	ClearAvatar     bool
}

type LikeResult struct {
	Status  string `json:"status"`
	Action  Action `json:"action"`
	Matched bool   `json:"matched"`
}
