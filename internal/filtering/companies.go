package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/jobswipe/jobswipe/internal/api"
)

type companiesFilter struct {
	companies []string
}

// NewCompanies creates a filter that removes jobs posted by the configured companies.
func NewCompanies() Filter {
	return &companiesFilter{}
}

func (f *companiesFilter) Name() string { return "companies" }

func (f *companiesFilter) Disable(string) {}

func (f *companiesFilter) IsEnabled() bool { return true }

func (f *companiesFilter) Validate(cfg *Config) error {
	f.companies = nil
	if cfg == nil {
		return nil
	}
	for _, c := range cfg.Companies {
		if c = strings.TrimSpace(c); c != "" {
			f.companies = append(f.companies, c)
		}
	}
	return nil
}

func (f *companiesFilter) Apply(_ context.Context, deps Deps, jobs *api.Jobs) (*api.Jobs, Step, error) {
	initial := jobs.Len()
	if len(f.companies) == 0 {
		return jobs, Step{Initial: initial, Left: initial}, nil
	}

	excluded := jobs.Exclude(api.JobCompanyField, f.companies)
	if len(excluded) > 0 {
		deps.Logger.Info("excluding jobs by company",
			zap.Strings("companies", f.companies),
			zap.Ints("excluded_jobs", excluded),
			zap.Int("jobs_left", jobs.Len()),
		)
	}

	return jobs, Step{Initial: initial, Dropped: len(excluded), Left: jobs.Len()}, nil
}

func (f *companiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
