package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobswipe/jobswipe/internal/api"
	"github.com/jobswipe/jobswipe/internal/feed"
	"github.com/jobswipe/jobswipe/internal/filtering"
	"github.com/jobswipe/jobswipe/internal/logger"
	"github.com/jobswipe/jobswipe/internal/session"
)

var jobsCmd = &cobra.Command{
	Use:     "jobs",
	Aliases: []string{"job"},
	Short:   "List job offers; recruiters also manage their postings",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the feed (jobseekers) or your postings (recruiters)",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := context.Background()
		a := newApp(ctx)
		defer a.Close()

		jobs := loadJobs(ctx, a, a.requireSession(ctx))

		if err := render(cmd.OutOrStdout(), viper.GetString("output"), jobs.Items, jobsTable(jobs.Items)); err != nil {
			a.logger.Fatal("printing jobs", zap.Error(err))
		}
	},
}

var jobsReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Group the listed jobs by company",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := context.Background()
		a := newApp(ctx)
		defer a.Close()

		jobs := loadJobs(ctx, a, a.requireSession(ctx))

		report := jobs.ReportByCompany()
		if strings.EqualFold(viper.GetString("output"), outputText) {
			// do not bother error since the report is plain strings
			pretty, _ := json.MarshalIndent(report, "", "  ")
			a.logger.Info(string(pretty), zap.Int("jobs count", jobs.Len()))
			return
		}

		if err := render(cmd.OutOrStdout(), viper.GetString("output"), report, nil); err != nil {
			a.logger.Fatal("printing report", zap.Error(err))
		}
	},
}

var jobsDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the listed jobs to a temporary json file",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := context.Background()
		a := newApp(ctx)
		defer a.Close()

		jobs := loadJobs(ctx, a, a.requireSession(ctx))

		filename, err := jobs.DumpToTmpFile()
		if err != nil {
			a.logger.Fatal("dump results to file", zap.Error(err))
		}
		a.logger.Info("dumping result to file", zap.String("filename", filename), zap.Int("count", jobs.Len()))
	},
}

var jobsExcludeCmd = &cobra.Command{
	Use:   "exclude JOB_ID...",
	Short: "Hide jobs from your feed by adding them to the exclude file",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		excludeJobs(args)
	},
}

var jobsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Post a new job offer (recruiters)",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := context.Background()
		a := newApp(ctx)
		defer a.Close()

		requireRecruiter(ctx, a)

		payload, err := jobPayloadFromFlags(cmd, &api.JobPayload{})
		if err != nil {
			a.logger.Fatal("invalid job", zap.Error(err))
		}
		if payload.Title == "" || payload.CompanyName == "" {
			a.logger.Fatal("invalid job", zap.String("reason", "--title and --company are required"))
		}

		job, err := a.client.CreateJob(ctx, payload)
		if err != nil {
			a.fatalAPI("creating job", err)
		}

		a.logger.Info("job posted", zap.Int(logger.FieldJobID, job.ID), zap.String("title", job.Title))
	},
}

var jobsUpdateCmd = &cobra.Command{
	Use:   "update JOB_ID",
	Short: "Edit one of your postings; only the flags you pass change (recruiters)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := newApp(ctx)
		defer a.Close()

		requireRecruiter(ctx, a)

		id, err := parseID(args[0])
		if err != nil {
			a.logger.Fatal("invalid job id", zap.Error(err))
		}

		current := findMyJob(ctx, a, id)

		payload, err := jobPayloadFromFlags(cmd, payloadFromJob(current))
		if err != nil {
			a.logger.Fatal("invalid job", zap.Error(err))
		}

		job, err := a.client.UpdateJob(ctx, id, payload)
		if err != nil {
			a.fatalAPI("updating job", err)
		}

		a.logger.Info("job updated", zap.Int(logger.FieldJobID, job.ID), zap.String("title", job.Title))
	},
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete JOB_ID",
	Short: "Delete one of your postings (recruiters)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := newApp(ctx)
		defer a.Close()

		requireRecruiter(ctx, a)

		id, err := parseID(args[0])
		if err != nil {
			a.logger.Fatal("invalid job id", zap.Error(err))
		}

		job := findMyJob(ctx, a, id)

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			confirm := promptui.Prompt{
				Label:     fmt.Sprintf("Delete %q", job.Title),
				IsConfirm: true,
			}
			if _, err := confirm.Run(); err != nil {
				a.logger.Info("exiting", zap.String("reason", "deletion not confirmed"))
				return
			}
		}

		if err := a.client.DeleteJob(ctx, id); err != nil {
			a.fatalAPI("deleting job", err)
		}

		a.logger.Info("job deleted", zap.Int(logger.FieldJobID, id))
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsReportCmd, jobsDumpCmd, jobsExcludeCmd, jobsCreateCmd, jobsUpdateCmd, jobsDeleteCmd)

	addJobFlags(jobsCreateCmd)
	addJobFlags(jobsUpdateCmd)

	jobsDeleteCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func addJobFlags(c *cobra.Command) {
	f := c.Flags()
	f.String("title", "", "job title")
	f.String("company", "", "company name")
	f.String("category", "", "category")
	f.String("governorate", "", "governorate")
	f.String("location", "", "location")
	f.String("salary", "", "salary range, free text")
	f.Int("min-experience", 0, "minimum years of experience")
	f.Int("max-experience", 0, "maximum years of experience")
	f.String("skills", "", "required skills")
	f.String("short-description", "", "one line summary shown on the card")
	f.String("description", "", "full description")
	f.String("tags", "", "tags, comma separated")
	f.String("image-url", "", "card image url")
}

// jobPayloadFromFlags overlays the flags the user set on base.
func jobPayloadFromFlags(cmd *cobra.Command, base *api.JobPayload) (*api.JobPayload, error) {
	f := cmd.Flags()

	str := func(name string, dst *string) {
		if f.Changed(name) {
			v, _ := f.GetString(name)
			*dst = strings.TrimSpace(v)
		}
	}
	years := func(name string, dst **int) error {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetInt(name)
		if v < 0 {
			return fmt.Errorf("--%s must not be negative", name)
		}
		*dst = &v
		return nil
	}

	str("title", &base.Title)
	str("company", &base.CompanyName)
	str("category", &base.Category)
	str("governorate", &base.Governorate)
	str("location", &base.Location)
	str("salary", &base.SalaryRange)
	str("skills", &base.Skills)
	str("short-description", &base.ShortDescription)
	str("description", &base.Description)
	str("tags", &base.Tags)
	str("image-url", &base.ImageURL)

	if err := years("min-experience", &base.MinExperienceYears); err != nil {
		return nil, err
	}
	if err := years("max-experience", &base.MaxExperienceYears); err != nil {
		return nil, err
	}

	if base.MinExperienceYears != nil && base.MaxExperienceYears != nil && *base.MinExperienceYears > *base.MaxExperienceYears {
		return nil, errors.New("minimum experience is above the maximum")
	}

	return base, nil
}

func payloadFromJob(j *api.Job) *api.JobPayload {
	return &api.JobPayload{
		Title:              j.Title,
		CompanyName:        j.CompanyName,
		Category:           j.Category,
		Governorate:        j.Governorate,
		Location:           j.Location,
		SalaryRange:        j.SalaryRange,
		MinExperienceYears: j.MinExperienceYears,
		MaxExperienceYears: j.MaxExperienceYears,
		Skills:             j.Skills,
		ShortDescription:   j.ShortDescription,
		Description:        j.Description,
		Tags:               j.Tags,
		ImageURL:           j.ImageURL,
	}
}

func requireRecruiter(ctx context.Context, a *app) {
	if role := a.requireSession(ctx); role != session.RoleRecruiter {
		a.logger.Fatal("only recruiters manage postings", zap.String("role", role.String()))
	}
}

func findMyJob(ctx context.Context, a *app, id int) *api.Job {
	mine, err := a.client.MyJobs(ctx)
	if err != nil {
		a.fatalAPI("loading your postings", err)
	}

	job := api.NewJobs(mine).FindByID(id)
	if job == nil {
		a.logger.Fatal("there is no such job among your postings", zap.Int(logger.FieldJobID, id))
	}
	return job
}

// loadJobs lists through the feed loader, so jobseekers get the excluded
// companies and the exclude file applied. The AI filter is left to swipe.
func loadJobs(ctx context.Context, a *app, role session.Role) *api.Jobs {
	cfg := filteringConfig(a.config)
	cfg.AI = nil

	var filters []filtering.Filter
	if role == session.RoleJobseeker {
		filters = filtering.Default()
	}

	loader := feed.NewLoader(a.client, role, feed.Options{
		Filters: filters,
		Config:  cfg,
		Profile: a.store.User(),
		Logger:  a.logger.Named("feed"),
	})

	items, err := loader.Load(ctx)
	if err != nil {
		a.fatalAPI("loading jobs", err)
	}

	a.logger.Debug("current list of jobs", zap.Int("count", len(items)))

	return api.NewJobs(items)
}

func excludeJobs(args []string) {
	ctx := context.Background()
	a := newApp(ctx)
	defer a.Close()

	if role := a.requireSession(ctx); role != session.RoleJobseeker {
		a.logger.Fatal("only jobseekers keep an exclude file", zap.String("role", role.String()))
	}

	path := strings.TrimSpace(a.config.excludeFile())
	if path == "" {
		a.logger.Fatal("exclude file is not configured", zap.String("hint", "pass --exclude-file or set exclude.file"))
	}

	ids := make([]int, 0, len(args))
	for _, raw := range args {
		id, err := parseID(raw)
		if err != nil {
			a.logger.Fatal("invalid job id", zap.Error(err))
		}
		ids = append(ids, id)
	}

	items, err := a.client.Feed(ctx)
	if err != nil {
		a.fatalAPI("loading feed", err)
	}
	all := api.NewJobs(items)

	selected := api.NewJobs(nil)
	for _, id := range ids {
		job := all.FindByID(id)
		if job == nil {
			// Not in the feed any more; keep the id so it stays hidden.
			job = &api.Job{ID: id}
		}
		selected.Items = append(selected.Items, job)
	}

	excluded, err := filtering.LoadExcludedJobs(path)
	if err != nil {
		a.logger.Fatal("reading exclude file", zap.Error(err))
	}

	added := excluded.Append(filtering.ToExcluded(selected, time.Now().UTC()))
	if err := excluded.ToFile(path); err != nil {
		a.logger.Fatal("writing exclude file", zap.Error(err))
	}

	a.logger.Info("appended to exclude file", zap.String("filename", path), zap.Int("added", added))
}
