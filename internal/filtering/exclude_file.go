package filtering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jobswipe/jobswipe/internal/api"
)

// ExcludedJob is one entry of the local exclude file.
type ExcludedJob struct {
	ID          int       `json:"id"`
	Title       string    `json:"title,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	ExcludedAt  time.Time `json:"excluded_at"`
}

type ExcludedJobs struct {
	Items []*ExcludedJob `json:"items"`
}

// ToExcluded converts jobs into exclude file entries stamped with at.
func ToExcluded(jobs *api.Jobs, at time.Time) *ExcludedJobs {
	excluded := &ExcludedJobs{}
	for _, job := range jobs.Items {
		excluded.Items = append(excluded.Items, &ExcludedJob{
			ID:          job.ID,
			Title:       job.Title,
			CompanyName: job.CompanyName,
			ExcludedAt:  at.UTC(),
		})
	}
	return excluded
}

// LoadExcludedJobs reads the exclude file. A missing or empty file is an
// empty list.
func LoadExcludedJobs(path string) (*ExcludedJobs, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &ExcludedJobs{}, nil
	}
	if err != nil {
		return nil, err
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return &ExcludedJobs{}, nil
	}

	var excluded ExcludedJobs
	if err := json.Unmarshal(data, &excluded); err != nil {
		return nil, fmt.Errorf("parsing exclude file %q: %w", path, err)
	}
	return &excluded, nil
}

// Append adds entries whose id is not already listed.
func (e *ExcludedJobs) Append(other *ExcludedJobs) int {
	seen := make(map[int]struct{}, len(e.Items))
	for _, item := range e.Items {
		seen[item.ID] = struct{}{}
	}

	added := 0
	for _, item := range other.Items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		e.Items = append(e.Items, item)
		added++
	}
	return added
}

func (e *ExcludedJobs) IDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, strconv.Itoa(item.ID))
	}
	return ids
}

func (e *ExcludedJobs) ToFile(path string) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

type excludeFileFilter struct {
	path string
}

// NewExcludeFile creates a filter that removes jobs listed in the exclude file.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(string) {}

func (f *excludeFileFilter) IsEnabled() bool { return true }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, jobs *api.Jobs) (*api.Jobs, Step, error) {
	initial := jobs.Len()
	if f.path == "" {
		return jobs, Step{Initial: initial, Left: initial}, nil
	}

	excluded, err := LoadExcludedJobs(f.path)
	if err != nil {
		return jobs, Step{}, fmt.Errorf("getting excluded jobs from file: %w", err)
	}

	removed := jobs.Exclude(api.JobIDField, excluded.IDs())
	if len(removed) > 0 {
		deps.Logger.Info("excluding jobs based on exclude file",
			zap.String("path", f.path),
			zap.Ints("excluded_jobs", removed),
			zap.Int("jobs_left", jobs.Len()),
		)
	}

	return jobs, Step{Initial: initial, Dropped: len(removed), Left: jobs.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
