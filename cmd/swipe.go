package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobswipe/jobswipe/internal/ai"
	"github.com/jobswipe/jobswipe/internal/ai/gemini"
	"github.com/jobswipe/jobswipe/internal/api"
	"github.com/jobswipe/jobswipe/internal/feed"
	"github.com/jobswipe/jobswipe/internal/filtering"
	"github.com/jobswipe/jobswipe/internal/outbox"
	"github.com/jobswipe/jobswipe/internal/secrets"
	"github.com/jobswipe/jobswipe/internal/session"
	"github.com/jobswipe/jobswipe/internal/swipe"
)

const (
	PromptLike           = "Like"
	PromptSkip           = "Skip"
	PromptDrag           = "Drag the card"
	PromptExcludeCompany = "Not interested in this company"
	PromptDetails        = "Details"
	PromptQuit           = "Quit"

	PromptAccept = "Accept"
	PromptReject = "Reject"
)

var errQuit = errors.New("quit requested")

var swipeCmd = &cobra.Command{
	Use:   "swipe",
	Short: "Swipe through job offers, or answer pending likes as a recruiter",
	Run: func(cmd *cobra.Command, _ []string) {
		runSwipe(cmd)
	},
}

func init() {
	rootCmd.AddCommand(swipeCmd)

	swipeCmd.Flags().Bool("auto", false, "do not prompt: like what the AI marks as a fit and skip the rest")
	swipeCmd.Flags().String("delivery", "", "how likes reach the backend: direct or outbox")

	viper.BindPFlag("swipe.delivery", swipeCmd.Flags().Lookup("delivery"))
}

func runSwipe(cmd *cobra.Command) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := newApp(ctx)
	defer a.Close()

	role := a.requireSession(ctx)

	a.logger.Info("starting jobswipe", zap.String("version", version))

	switch role {
	case session.RoleJobseeker:
		auto, _ := cmd.Flags().GetBool("auto")
		if err := swipeJobs(ctx, a, cmd.OutOrStdout(), auto); err != nil && !errors.Is(err, errQuit) {
			a.fatalAPI("swiping", err)
		}
	case session.RoleRecruiter:
		if err := reviewMatches(ctx, a, cmd.OutOrStdout()); err != nil && !errors.Is(err, errQuit) {
			a.fatalAPI("answering likes", err)
		}
	default:
		a.logger.Fatal("unsupported role", zap.String("role", role.String()))
	}
}

const defaultCardWidth = 390

// swipeGeometry falls back to the default card width when the configured
// one is not positive; a zero width would resolve on any drag.
func swipeGeometry(cfg *SwipeConfig) swipe.Geometry {
	if cfg == nil {
		return swipe.Geometry{Width: defaultCardWidth, ThresholdRatio: swipe.DefaultThresholdRatio}
	}

	g := swipe.Geometry{Width: cfg.Width, ThresholdRatio: cfg.ThresholdRatio}
	if g.Width <= 0 || math.IsNaN(g.Width) || math.IsInf(g.Width, 0) {
		g.Width = defaultCardWidth
	}
	return g
}

func swipeJobs(ctx context.Context, a *app, out io.Writer, auto bool) error {
	filterCfg := filteringConfig(a.config)
	filters := filtering.Default()

	var matcher ai.Matcher
	if filterCfg.AI != nil && filterCfg.AI.Enabled {
		m, err := newAIMatcher(ctx, a.config.AI, a.logger)
		if err != nil {
			a.logger.Warn("skipping AI filter", zap.Error(err))
			filtering.DisableByName(filters, "ai_fit", err.Error())
		} else {
			matcher = m
		}
	}

	if auto && matcher == nil {
		return errors.New("--auto needs a working ai section in the config")
	}

	for _, st := range filtering.Describe(filters) {
		a.logger.Debug("filter", zap.String("name", st.Name), zap.Bool("enabled", st.Enabled), zap.String("reason", st.Reason))
	}

	loader := feed.NewLoader(a.client, session.RoleJobseeker, feed.Options{
		Filters: filters,
		Config:  filterCfg,
		Matcher: matcher,
		Profile: a.store.User(),
		Logger:  a.logger.Named("feed"),
	})

	submitter, stop, err := decisionSubmitter(ctx, a)
	if err != nil {
		return err
	}
	defer stop()

	deck := swipe.New[*api.Job](loader, submitter, swipe.Options{
		Geometry:      swipeGeometry(a.config.Swipe),
		Mode:          swipe.FireAndForget,
		Logger:        a.logger.Named("swipe"),
		SubmitTimeout: submitTimeout(a.config.Swipe),
	})
	defer deck.Close()

	if err := deck.Load(ctx); err != nil {
		return err
	}

	for {
		switch deck.Display() {
		case swipe.DisplayError:
			return deck.Err()
		case swipe.DisplayEmpty:
			fmt.Fprintln(out, "No more opportunities. Check back later.")
			a.logger.Info("deck finished", zap.Int("decisions", len(deck.Decisions())))
			return nil
		}

		job, ok := deck.Current()
		if !ok {
			return nil
		}

		assessment, _ := loader.Assessment(job.ID)
		printJobCard(out, job, deck.Remaining(), assessment)

		if auto {
			dir := swipe.Left
			if assessment != nil && assessment.Fit {
				dir = swipe.Right
			}
			if err := commit(ctx, deck, out, dir); err != nil {
				return err
			}
			continue
		}

		if err := handleSwipeAction(ctx, a, out, deck, job); err != nil {
			return err
		}
	}
}

func handleSwipeAction(ctx context.Context, a *app, out io.Writer, deck *swipe.Controller[*api.Job], job *api.Job) error {
	items := []string{PromptLike, PromptSkip, PromptDrag, PromptDetails}
	excludeFile := strings.TrimSpace(a.config.excludeFile())
	if excludeFile != "" {
		items = append(items, PromptExcludeCompany)
	}
	items = append(items, PromptQuit)

	prompt := promptui.Select{
		Label: fmt.Sprintf("%s at %s", job.Title, job.CompanyName),
		Items: items,
	}

	_, action, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return errQuit
		}
		return err
	}

	switch action {
	case PromptLike:
		return commit(ctx, deck, out, swipe.Right)
	case PromptSkip:
		return commit(ctx, deck, out, swipe.Left)
	case PromptDrag:
		return drag(ctx, deck, out)
	case PromptDetails:
		printJobDetails(out, job)
		return nil
	case PromptExcludeCompany:
		return excludeCompany(ctx, a, out, deck, excludeFile, job)
	case PromptQuit:
		a.logger.Info("exiting", zap.String("reason", "got quit from prompt"))
		return errQuit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// commit plays a button press: the card flies out and the decision is
// recorded once the exit completes.
func commit[T swipe.Card](ctx context.Context, deck *swipe.Controller[T], out io.Writer, dir swipe.Direction) error {
	if !deck.Press(dir) {
		return nil
	}
	return finish(ctx, deck, out)
}

func finish[T swipe.Card](ctx context.Context, deck *swipe.Controller[T], out io.Writer) error {
	d, err := deck.Finish(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  %s %d\n", actionMark(d.Action), d.ID)
	return nil
}

func drag(ctx context.Context, deck *swipe.Controller[*api.Job], out io.Writer) error {
	g := deck.Geometry()

	prompt := promptui.Prompt{
		Label: fmt.Sprintf("Horizontal offset (card width %.0f, threshold %.0f)", g.Width, g.Threshold()),
		Validate: func(s string) error {
			_, err := parseOffset(s)
			return err
		},
	}

	raw, err := prompt.Run()
	if err != nil {
		return err
	}
	dx, err := parseOffset(raw)
	if err != nil {
		return err
	}

	deck.Drag(dx, 0)
	f := deck.Frame()
	fmt.Fprintf(out, "  rotation %.1f°, like %.0f%%, nope %.0f%%\n", f.Rotation, f.LikeOpacity*100, f.DislikeOpacity*100)

	if !deck.Release() {
		fmt.Fprintln(out, "  not far enough, the card springs back")
		return nil
	}

	return finish(ctx, deck, out)
}

func parseOffset(s string) (float64, error) {
	dx, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(dx) || math.IsInf(dx, 0) {
		return 0, fmt.Errorf("%q is not a finite offset", s)
	}
	return dx, nil
}

// excludeCompany writes every feed job of the company to the exclude file,
// skips the current card and reloads so the rest disappear too.
func excludeCompany(ctx context.Context, a *app, out io.Writer, deck *swipe.Controller[*api.Job], path string, job *api.Job) error {
	excluded, err := filtering.LoadExcludedJobs(path)
	if err != nil {
		return fmt.Errorf("reading exclude file: %w", err)
	}

	items, err := a.client.Feed(ctx)
	if err != nil {
		return err
	}

	company := api.NewJobs([]*api.Job{job})
	for _, j := range items {
		if j.ID != job.ID && strings.EqualFold(strings.TrimSpace(j.CompanyName), strings.TrimSpace(job.CompanyName)) {
			company.Items = append(company.Items, j)
		}
	}

	added := excluded.Append(filtering.ToExcluded(company, time.Now().UTC()))
	if err := excluded.ToFile(path); err != nil {
		return fmt.Errorf("writing exclude file: %w", err)
	}

	a.logger.Info("appended to exclude file",
		zap.String("filename", path),
		zap.String("company", job.CompanyName),
		zap.Int("added", added),
	)

	if err := commit(ctx, deck, out, swipe.Left); err != nil {
		return err
	}
	return deck.Load(ctx)
}

func printJobCard(out io.Writer, job *api.Job, remaining int, assessment *ai.FitAssessment) {
	fmt.Fprintf(out, "\n%d opportunities\n", remaining)
	fmt.Fprintf(out, "%s\n  %s · %s\n", job.Title, job.CompanyName, jobPlace(job))

	if job.SalaryRange != "" {
		fmt.Fprintf(out, "  salary: %s\n", job.SalaryRange)
	}
	if exp := job.Experience(); exp != "" {
		fmt.Fprintf(out, "  experience: %s\n", exp)
	}
	if job.ShortDescription != "" {
		fmt.Fprintf(out, "  %s\n", job.ShortDescription)
	}
	if assessment != nil {
		verdict := "not a fit"
		if assessment.Fit {
			verdict = "good fit"
		}
		fmt.Fprintf(out, "  ai: %s (%.2f) %s\n", verdict, assessment.Score, assessment.Reason)
	}
}

func printJobDetails(out io.Writer, job *api.Job) {
	row := func(k, v string) {
		if strings.TrimSpace(v) != "" {
			fmt.Fprintf(out, "  %s: %s\n", k, v)
		}
	}

	row("category", job.Category)
	row("skills", job.Skills)
	row("tags", job.Tags)
	row("posted by", job.RecruiterName)
	row("posted at", job.CreatedAt)
	row("image", job.ImageURL)
	if job.Description != "" {
		fmt.Fprintf(out, "\n%s\n", job.Description)
	}
}

func actionMark(a api.Action) string {
	if a == api.ActionLike {
		return "♥ liked"
	}
	return "✕ skipped"
}

// decisionSubmitter picks direct delivery or the outbox. The returned stop
// function drains the outbox worker.
func decisionSubmitter(ctx context.Context, a *app) (swipe.Submitter, func(), error) {
	direct := feed.Submitter(a.client)

	cfg := a.config.Swipe
	if cfg == nil || strings.TrimSpace(cfg.Delivery) == "" || cfg.Delivery == deliveryDirect {
		return direct, func() {}, nil
	}
	if cfg.Delivery != deliveryOutbox {
		return nil, nil, fmt.Errorf("unsupported delivery %q: expected direct or outbox", cfg.Delivery)
	}

	opts := outbox.Options{Logger: a.logger.Named("outbox")}
	if cfg.Outbox != nil {
		opts.BaseDelay = cfg.Outbox.BaseDelay
		opts.MaxDelay = cfg.Outbox.MaxDelay
		opts.MaxAttempts = cfg.Outbox.MaxAttempts
	}

	box, err := outbox.Open(ctx, a.storage, direct, opts)
	if err != nil {
		return nil, nil, err
	}
	box.Start(ctx)

	return box, func() {
		if pending := box.Pending(); len(pending) > 0 {
			a.logger.Info("decisions left for the next run", zap.Int("count", len(pending)))
		}
		box.Close()
	}, nil
}

func submitTimeout(cfg *SwipeConfig) time.Duration {
	if cfg == nil {
		return 0
	}
	return cfg.SubmitTimeout
}

func filteringConfig(c *Config) *filtering.Config {
	cfg := &filtering.Config{ExcludeFile: c.excludeFile()}
	if c.Exclude != nil {
		cfg.Companies = c.Exclude.Companies
	}

	if c.AI != nil {
		cfg.AI = &filtering.AIConfig{
			Enabled:         c.AI.Enabled,
			Provider:        c.AI.Provider,
			MinimumFitScore: c.AI.MinimumFitScore,
		}
		if c.AI.Gemini != nil {
			cfg.AI.Gemini = &filtering.GeminiConfig{
				Model:        c.AI.Gemini.Model,
				MaxRetries:   c.AI.Gemini.MaxRetries,
				MaxLogLength: c.AI.Gemini.MaxLogLength,
			}
		}
	}

	return cfg
}

func (c *Config) excludeFile() string {
	if c == nil || c.Exclude == nil {
		return ""
	}
	return c.Exclude.File
}

func newAIMatcher(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Matcher, error) {
	if cfg == nil || cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai is enabled")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (or set ai.gemini.api-key-file)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	minScore := cfg.MinimumFitScore
	if minScore < 0 {
		minScore = 0
	}

	matcherLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", generator.Model()),
		zap.Float64("minimum_fit_score", minScore),
	)

	matcher := gemini.NewMatcher(generator, minScore, cfg.Gemini.MaxLogLength, matcherLogger)
	matcher.SetPreferences(cfg.Preferences)

	return matcher, nil
}
