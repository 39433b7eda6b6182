package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobswipe/jobswipe/internal/api"
	"github.com/jobswipe/jobswipe/internal/secrets"
	"github.com/jobswipe/jobswipe/internal/session"
)

const passwordEnv = envPrefix + "_PASSWORD"

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session",
	Run: func(cmd *cobra.Command, _ []string) {
		login(cmd)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account as a jobseeker or a recruiter",
	Run: func(cmd *cobra.Command, _ []string) {
		register(cmd)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := context.Background()
		a := newApp(ctx)
		defer a.Close()

		if err := a.store.Logout(ctx); err != nil {
			a.logger.Fatal("clearing session", zap.Error(err))
		}
		a.logger.Info("logged out")
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in profile",
	Run: func(cmd *cobra.Command, _ []string) {
		whoami(cmd)
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your profile",
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update profile fields; only the flags you pass are sent",
	Run: func(cmd *cobra.Command, _ []string) {
		updateProfile(cmd)
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd, profileCmd)
	profileCmd.AddCommand(profileUpdateCmd)

	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringP("username", "u", "", "account username (prompted when empty)")
		c.Flags().String("password-file", "", "read the password from a file instead of prompting (or set "+passwordEnv+")")
	}

	addRegisterFlags(registerCmd)
	addProfileFlags(profileUpdateCmd)
}

func addRegisterFlags(c *cobra.Command) {
	f := c.Flags()
	f.String("email", "", "account email")
	f.String("role", "", "jobseeker or recruiter")
	f.String("company", "", "company name (recruiters)")
	f.String("position", "", "position title (recruiters)")
	f.String("skills", "", "skills, comma separated (jobseekers)")
	f.String("bio", "", "short bio (jobseekers)")
	f.Int("experience", -1, "years of experience (jobseekers)")
}

func addProfileFlags(c *cobra.Command) {
	f := c.Flags()
	f.String("name", "", "display name")
	f.String("email", "", "email")
	f.String("skills", "", "skills, comma separated")
	f.String("bio", "", "short bio")
	f.Int("experience", 0, "years of experience")
	f.String("company", "", "company name")
	f.String("position", "", "position title")
	f.String("avatar", "", "avatar image: a local file is uploaded, an http(s) url is stored as is")
	f.Bool("clear-avatar", false, "remove the avatar")
}

func login(cmd *cobra.Command) {
	ctx := context.Background()
	a := newApp(ctx)
	defer a.Close()

	username, err := flagOrPrompt(cmd, "username", "Username")
	if err != nil {
		a.logger.Fatal("reading username", zap.Error(err))
	}

	password, err := readPassword(cmd)
	if err != nil {
		a.logger.Fatal("reading password", zap.Error(err))
	}

	profile, err := a.store.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, api.ErrAuth) {
			a.logger.Fatal("login failed", zap.String("reason", "invalid username or password"))
		}
		a.fatalAPI("login failed", err)
	}

	a.logger.Info("logged in",
		zap.String("user", profile.DisplayName()),
		zap.String("role", a.store.Role().String()),
	)
}

func register(cmd *cobra.Command) {
	ctx := context.Background()
	a := newApp(ctx)
	defer a.Close()

	reg, err := registrationFromFlags(cmd)
	if err != nil {
		a.logger.Fatal("invalid registration", zap.Error(err))
	}

	if reg.Username, err = flagOrPrompt(cmd, "username", "Username"); err != nil {
		a.logger.Fatal("reading username", zap.Error(err))
	}
	if reg.Password, err = readPassword(cmd); err != nil {
		a.logger.Fatal("reading password", zap.Error(err))
	}

	profile, err := a.client.Register(ctx, reg)
	if err != nil {
		a.fatalAPI("registration failed", err)
	}

	a.logger.Info("registered", zap.String("user", profile.DisplayName()), zap.String("role", profile.Role))

	if _, err := a.store.Login(ctx, reg.Username, reg.Password); err != nil {
		a.fatalAPI("logging in after registration", err)
	}

	a.logger.Info("logged in", zap.String("role", a.store.Role().String()))
}

// registrationFromFlags builds the payload and keeps only the fields that
// belong to the chosen role.
func registrationFromFlags(cmd *cobra.Command) (*api.Registration, error) {
	f := cmd.Flags()

	rawRole, _ := f.GetString("role")
	role, err := session.ParseRole(rawRole)
	if err != nil {
		return nil, err
	}

	email, _ := f.GetString("email")
	if strings.TrimSpace(email) == "" {
		return nil, errors.New("--email is required")
	}

	reg := &api.Registration{Email: strings.TrimSpace(email), Role: string(role)}

	switch role {
	case session.RoleRecruiter:
		reg.CompanyName, _ = f.GetString("company")
		reg.PositionTitle, _ = f.GetString("position")
		if strings.TrimSpace(reg.CompanyName) == "" {
			return nil, errors.New("--company is required for recruiters")
		}
	case session.RoleJobseeker:
		reg.Skills, _ = f.GetString("skills")
		reg.Bio, _ = f.GetString("bio")
		if years, _ := f.GetInt("experience"); years >= 0 {
			reg.ExperienceYears = &years
		}
	}

	return reg, nil
}

func whoami(cmd *cobra.Command) {
	ctx := context.Background()
	a := newApp(ctx)
	defer a.Close()

	role := a.requireSession(ctx)

	profile, err := a.client.Me(ctx)
	if err != nil {
		a.fatalAPI("fetching profile", err)
	}
	if err := a.store.SetUser(ctx, profile); err != nil {
		a.logger.Warn("saving profile", zap.Error(err))
	}

	if exp, err := a.store.Expiry(); err == nil {
		a.logger.Debug("access token", zap.Time("expires_at", exp))
	}

	if err := render(cmd.OutOrStdout(), viper.GetString("output"), profile, profileTable(profile, role.String())); err != nil {
		a.logger.Fatal("printing profile", zap.Error(err))
	}
}

func updateProfile(cmd *cobra.Command) {
	ctx := context.Background()
	a := newApp(ctx)
	defer a.Close()

	a.requireSession(ctx)

	update, err := profileUpdateFromFlags(cmd)
	if err != nil {
		a.logger.Fatal("invalid profile update", zap.Error(err))
	}

	profile, err := a.client.UpdateMe(ctx, update)
	if err != nil {
		a.fatalAPI("updating profile", err)
	}

	if err := a.store.SetUser(ctx, profile); err != nil {
		a.logger.Warn("saving profile", zap.Error(err))
	}

	a.logger.Info("profile updated", zap.String("user", profile.DisplayName()))
}

// profileUpdateFromFlags sends only the flags the user actually set, so an
// empty string can still clear a field.
func profileUpdateFromFlags(cmd *cobra.Command) (*api.ProfileUpdate, error) {
	f := cmd.Flags()
	u := &api.ProfileUpdate{}
	changed := false

	str := func(name string) *string {
		if !f.Changed(name) {
			return nil
		}
		changed = true
		v, _ := f.GetString(name)
		return &v
	}

	u.Name = str("name")
	u.Email = str("email")
	u.Skills = str("skills")
	u.Bio = str("bio")
	u.CompanyName = str("company")
	u.PositionTitle = str("position")

	if f.Changed("experience") {
		years, _ := f.GetInt("experience")
		if years < 0 {
			return nil, fmt.Errorf("experience must not be negative, got %d", years)
		}
		u.ExperienceYears = &years
		changed = true
	}

	u.ClearAvatar, _ = f.GetBool("clear-avatar")
	if avatar := str("avatar"); avatar != nil {
		if u.ClearAvatar {
			return nil, errors.New("--avatar and --clear-avatar are mutually exclusive")
		}
		if isURL(*avatar) {
			u.AvatarURL = avatar
		} else {
			u.AvatarFile = *avatar
		}
	}

	if !changed && !u.ClearAvatar {
		return nil, errors.New("nothing to update")
	}

	return u, nil
}

func isURL(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func flagOrPrompt(cmd *cobra.Command, flag, label string) (string, error) {
	if v, _ := cmd.Flags().GetString(flag); strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), nil
	}

	p := promptui.Prompt{
		Label:    label,
		Validate: notEmpty,
	}
	v, err := p.Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v), nil
}

// readPassword takes the password from --password-file or the environment
// and only prompts when neither is set.
func readPassword(cmd *cobra.Command) (string, error) {
	file, _ := cmd.Flags().GetString("password-file")
	if file != "" || viper.GetString("password") != "" {
		return secrets.Load(secrets.Source{
			Name: "password",
			File: file,
			Env:  passwordEnv,
		})
	}

	p := promptui.Prompt{
		Label:    "Password",
		Mask:     '*',
		Validate: notEmpty,
	}
	return p.Run()
}

func notEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("must not be empty")
	}
	return nil
}
