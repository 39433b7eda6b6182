package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobswipe/jobswipe/internal/api"
	"github.com/jobswipe/jobswipe/internal/logger"
	"github.com/jobswipe/jobswipe/internal/matches"
	"github.com/jobswipe/jobswipe/internal/session"
	"github.com/jobswipe/jobswipe/internal/swipe"
)

var matchesCmd = &cobra.Command{
	Use:     "matches",
	Aliases: []string{"match"},
	Short:   "List and answer matches",
}

var matchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List matches",
	Run: func(cmd *cobra.Command, _ []string) {
		listMatches(cmd)
	},
}

var matchesAcceptCmd = &cobra.Command{
	Use:   "accept MATCH_ID",
	Short: "Accept a pending like (recruiters)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		answerMatch(args[0], api.MatchAccepted)
	},
}

var matchesRejectCmd = &cobra.Command{
	Use:   "reject MATCH_ID",
	Short: "Reject a pending like (recruiters)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		answerMatch(args[0], api.MatchRejected)
	},
}

var matchesReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Go through pending likes one by one (recruiters)",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := context.Background()
		a := newApp(ctx)
		defer a.Close()

		if role := a.requireSession(ctx); role != session.RoleRecruiter {
			a.logger.Fatal("only recruiters answer likes", zap.String("role", role.String()))
		}

		if err := reviewMatches(ctx, a, cmd.OutOrStdout()); err != nil && !errors.Is(err, errQuit) {
			a.fatalAPI("answering likes", err)
		}
	},
}

var matchesChatCmd = &cobra.Command{
	Use:   "chat MATCH_ID",
	Short: "Open the chat of an accepted match",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		openChat(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(matchesCmd)
	matchesCmd.AddCommand(matchesListCmd, matchesAcceptCmd, matchesRejectCmd, matchesReviewCmd, matchesChatCmd)

	matchesListCmd.Flags().Bool("pending", false, "only pending likes")
	matchesListCmd.Flags().Bool("accepted", false, "only accepted matches")
}

func listMatches(cmd *cobra.Command) {
	ctx := context.Background()
	a := newApp(ctx)
	defer a.Close()

	role := a.requireSession(ctx)

	r := matches.NewResponder(a.client, a.logger.Named("matches"))
	if _, err := r.Load(ctx); err != nil {
		a.fatalAPI("loading matches", err)
	}

	pending, _ := cmd.Flags().GetBool("pending")
	accepted, _ := cmd.Flags().GetBool("accepted")

	items := visibleMatches(r, role, pending, accepted)

	if err := render(cmd.OutOrStdout(), viper.GetString("output"), items, matchesTable(items)); err != nil {
		a.logger.Fatal("printing matches", zap.Error(err))
	}
}

// visibleMatches applies the list filters. Jobseekers only ever see
// accepted matches.
func visibleMatches(r *matches.Responder, role session.Role, pending, accepted bool) []*api.Match {
	switch {
	case role == session.RoleJobseeker, accepted:
		return r.Accepted()
	case pending:
		return r.Pending()
	default:
		return r.Items()
	}
}

func answerMatch(rawID string, status api.MatchStatus) {
	ctx := context.Background()
	a := newApp(ctx)
	defer a.Close()

	if role := a.requireSession(ctx); role != session.RoleRecruiter {
		a.logger.Fatal("only recruiters answer likes", zap.String("role", role.String()))
	}

	id, err := parseID(rawID)
	if err != nil {
		a.logger.Fatal("invalid match id", zap.Error(err))
	}

	r := matches.NewResponder(a.client, a.logger.Named("matches"))
	if err := r.SetStatus(ctx, id, status); err != nil {
		a.fatalAPI("answering match", err)
	}

	a.logger.Info("match updated",
		zap.Int(logger.FieldMatchID, id),
		zap.String("status", string(status)),
		zap.Int("pending_left", len(r.Pending())),
	)
}

// reviewMatches runs the recruiter deck. Each answer waits for the backend;
// a failed answer keeps the card so it can be retried.
func reviewMatches(ctx context.Context, a *app, out io.Writer) error {
	r := matches.NewResponder(a.client, a.logger.Named("matches"))

	deck := r.Deck(swipe.Options{
		Geometry: swipeGeometry(a.config.Swipe),
		Logger:   a.logger.Named("swipe"),
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
			fmt.Fprintln(out, "No pending likes.")
			return nil
		}

		m, ok := deck.Current()
		if !ok {
			return nil
		}

		fmt.Fprintf(out, "\n%d pending\n%s liked %s at %s (%s)\n",
			deck.Remaining(), dash(m.JobseekerName), m.JobTitle, m.CompanyName, dash(m.CreatedAt))

		prompt := promptui.Select{
			Label: "Answer",
			Items: []string{PromptAccept, PromptReject, PromptQuit},
		}

		_, action, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return errQuit
			}
			return err
		}

		var dir swipe.Direction
		switch action {
		case PromptAccept:
			dir = swipe.Right
		case PromptReject:
			dir = swipe.Left
		case PromptQuit:
			return errQuit
		default:
			return fmt.Errorf("invalid action: %s", action)
		}

		if err := commit(ctx, deck, out, dir); err != nil {
			if errors.Is(err, session.ErrSessionExpired) || errors.Is(err, session.ErrNotAuthenticated) {
				return err
			}
			a.logger.Error("answer was not saved", zap.Int(logger.FieldMatchID, m.ID), zap.Error(err))
		}
	}
}

func openChat(cmd *cobra.Command, rawID string) {
	ctx := context.Background()
	a := newApp(ctx)
	defer a.Close()

	a.requireSession(ctx)

	id, err := parseID(rawID)
	if err != nil {
		a.logger.Fatal("invalid match id", zap.Error(err))
	}

	r := matches.NewResponder(a.client, a.logger.Named("matches"))
	if _, err := r.Load(ctx); err != nil {
		a.fatalAPI("loading matches", err)
	}

	m, ok := r.Find(id)
	if !ok {
		a.logger.Fatal("match not found", zap.Int(logger.FieldMatchID, id))
	}
	if m.Status != api.MatchAccepted {
		a.logger.Fatal("chat opens once the match is accepted", zap.String("status", string(m.Status)))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s · %s\nChat coming soon\n", m.JobTitle, m.CompanyName)
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%q is not a valid id", raw)
	}
	return id, nil
}
