package api

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const (
	JobIDField      = "ID"
	JobCompanyField = "Company"
)

// Jobs is an ordered job list. Every operation preserves feed order.
type Jobs struct {
	Items []*Job
}

func NewJobs(items []*Job) *Jobs {
	return &Jobs{Items: items}
}

func (j *Jobs) Len() int {
	return len(j.Items)
}

func (j *Jobs) FindByID(id int) *Job {
	for _, job := range j.Items {
		if job.ID == id {
			return job
		}
	}
	return nil
}

func (j *Jobs) IDs() []int {
	ids := make([]int, 0, len(j.Items))
	for _, job := range j.Items {
		ids = append(ids, job.ID)
	}
	return ids
}

func (job *Job) GetStringField(name string) string {
	switch name {
	case JobIDField:
		return fmt.Sprintf("%d", job.ID)
	case JobCompanyField:
		return strings.ToLower(strings.TrimSpace(job.CompanyName))
	default:
		return ""
	}
}

// Exclude drops jobs whose field matches one of targets and returns the
// dropped job ids. Company matching is case-insensitive.
func (j *Jobs) Exclude(name string, targets []string) []int {
	if len(targets) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if name == JobCompanyField {
			t = strings.ToLower(strings.TrimSpace(t))
		}
		set[t] = struct{}{}
	}

	var excluded []int
	kept := j.Items[:0]
	for _, job := range j.Items {
		if _, ok := set[job.GetStringField(name)]; ok {
			excluded = append(excluded, job.ID)
			continue
		}
		kept = append(kept, job)
	}
	j.Items = kept

	return excluded
}

// ReportByCompany groups jobs by company for the jobs report command.
func (j *Jobs) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, job := range j.Items {
		report[job.CompanyName] = append(report[job.CompanyName], map[string]string{
			"id":          fmt.Sprintf("%d", job.ID),
			"title":       job.Title,
			"category":    job.Category,
			"governorate": job.Governorate,
			"salary":      job.SalaryRange,
			"experience":  job.Experience(),
		})
	}
	return report
}

func (j *Jobs) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "jobs_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(j); err != nil {
		return "", err
	}
	return file.Name(), nil
}
