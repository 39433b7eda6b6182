package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/jobswipe/jobswipe/internal/api"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// render writes v in the requested format. text is only called for the
// text format and gets a tabwriter that is flushed afterwards.
func render(w io.Writer, format string, v any, text func(tw *tabwriter.Writer)) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", outputText:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		text(tw)
		return tw.Flush()
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q: expected text, json or yaml", format)
	}
}

func jobsTable(jobs []*api.Job) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tTITLE\tCOMPANY\tLOCATION\tSALARY\tEXPERIENCE")
		for _, j := range jobs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
				j.ID, j.Title, j.CompanyName, jobPlace(j), dash(j.SalaryRange), dash(j.Experience()))
		}
	}
}

func matchesTable(matches []*api.Match) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tJOB\tTITLE\tCOMPANY\tJOBSEEKER\tSTATUS\tCREATED")
		for _, m := range matches {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
				m.ID, m.JobID, m.JobTitle, m.CompanyName, dash(m.JobseekerName), m.Status, dash(m.CreatedAt))
		}
	}
}

func profileTable(p *api.Profile, role string) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		row := func(k, v string) {
			if v != "" {
				fmt.Fprintf(tw, "%s:\t%s\n", k, v)
			}
		}

		row("Name", p.DisplayName())
		row("Username", p.Username)
		row("Email", p.Email)
		row("Role", role)
		row("Company", p.CompanyName)
		row("Position", p.PositionTitle)
		row("Skills", p.Skills)
		if p.ExperienceYears != nil {
			row("Experience", fmt.Sprintf("%d years", *p.ExperienceYears))
		}
		row("Bio", p.Bio)
		if p.Avatar != nil {
			row("Avatar", *p.Avatar)
		}
	}
}

func jobPlace(j *api.Job) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{j.Location, j.Governorate} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return dash(strings.Join(parts, ", "))
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
