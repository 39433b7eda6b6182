package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobswipe/jobswipe/internal/api"
	"github.com/jobswipe/jobswipe/internal/logger"
	"github.com/jobswipe/jobswipe/internal/secrets"
	"github.com/jobswipe/jobswipe/internal/session"
)

// Refresh ahead of expiry so a long swipe run does not start on a token
// that dies after the first card.
const refreshLeeway = time.Minute

// app is what every command needs once config is parsed.
type app struct {
	logger  *zap.Logger
	config  *Config
	storage session.Storage
	client  *api.Client
	store   *session.Store

	closers []func() error
}

// newApp builds the logger, config and session. Any failure here is fatal.
func newApp(ctx context.Context) *app {
	log, err := buildLogger()
	if err != nil {
		fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		log.Fatal("config is required")
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	log.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	a := &app{logger: log, config: config}

	storage, err := a.openStorage(ctx)
	if err != nil {
		log.Fatal("opening session storage", zap.Error(err))
	}
	a.storage = storage

	a.client = api.New(log.Named("api"), config.APIURL)
	if config.UserAgent != "" {
		a.client.UserAgent = config.UserAgent
	}
	if config.Timeout > 0 {
		a.client.HTTPClient.Timeout = config.Timeout
	}

	store, err := session.Open(ctx, storage, a.client, log.Named("session"))
	if err != nil {
		log.Fatal("opening session", zap.Error(err))
	}
	a.store = store
	a.client.Auth = store

	return a
}

func buildLogger() (*zap.Logger, error) {
	return logger.New(viper.GetBool("json"), viper.GetBool("debug"))
}

var fatalf = log.Fatalf

func (a *app) openStorage(ctx context.Context) (session.Storage, error) {
	cfg := a.config.Session
	if cfg == nil {
		cfg = &SessionConfig{Backend: backendFile, File: defaultSessionFile()}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", backendFile:
		return session.NewFileStorage(cfg.File)
	case backendRedis:
		if cfg.Redis == nil {
			return nil, errors.New("session.redis section is required for the redis backend")
		}

		password := ""
		if cfg.Redis.Password != "" || cfg.Redis.PasswordFile != "" {
			var err error
			password, err = secrets.Load(secrets.Source{
				Name:  "redis password",
				Value: cfg.Redis.Password,
				File:  cfg.Redis.PasswordFile,
			})
			if err != nil {
				return nil, err
			}
		}

		storage, err := session.NewRedisStorage(ctx, session.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}, a.logger.Named("redis"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, storage.Close)
		return storage, nil
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.Backend)
	}
}

// requireSession makes sure there is a usable access token and returns the
// role. A session the backend no longer accepts is cleared here.
func (a *app) requireSession(ctx context.Context) session.Role {
	if !a.store.Authenticated() {
		a.logger.Fatal("not logged in", zap.String("hint", "run `jobswipe login` first"))
	}

	if err := a.store.EnsureFresh(ctx, refreshLeeway); err != nil {
		a.logger.Fatal("refreshing session", zap.Error(err), zap.String("hint", "run `jobswipe login` again"))
	}

	role := a.store.Role()
	if role == session.RoleNone {
		profile, err := a.client.Me(ctx)
		if err != nil {
			a.fatalAPI("fetching profile", err)
		}
		if err := a.store.SetUser(ctx, profile); err != nil {
			a.logger.Warn("saving profile", zap.Error(err))
		}
		if role, err = session.ParseRole(profile.Role); err != nil {
			a.logger.Fatal("unknown role", zap.String("role", profile.Role))
		}
		if err := a.store.SetRole(ctx, role); err != nil {
			a.logger.Warn("saving role", zap.Error(err))
		}
	}

	a.logger = logger.WithSession(a.logger, role.String(), a.store.User().DisplayName())

	return role
}

// fatalAPI logs an API error with its field messages and exits.
func (a *app) fatalAPI(msg string, err error) {
	fields := []zap.Field{zap.Error(err)}

	if apiErr, ok := api.AsError(err); ok {
		fields = append(fields, zap.Int("status", apiErr.Status))
		if f := apiErr.Fields(); len(f) > 0 {
			fields = append(fields, zap.Any("fields", f))
		}
	}

	switch {
	case errors.Is(err, session.ErrSessionExpired), errors.Is(err, session.ErrNotAuthenticated):
		fields = append(fields, zap.String("hint", "run `jobswipe login` again"))
	case errors.Is(err, api.ErrNetwork):
		fields = append(fields, zap.String("hint", "check api-url and your connection"))
	}

	a.logger.Fatal(msg, fields...)
}

func (a *app) Close() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			a.logger.Debug("closing", zap.Error(err))
		}
	}
	a.logger.Sync()
}

// redacted hides secrets before the config is logged.
func redacted(c *Config) *Config {
	out := *c
	if c.Session != nil && c.Session.Redis != nil {
		s := *c.Session
		r := *c.Session.Redis
		if r.Password != "" {
			r.Password = "***"
		}
		s.Redis = &r
		out.Session = &s
	}
	if c.AI != nil && c.AI.Gemini != nil {
		ai := *c.AI
		g := *c.AI.Gemini
		if g.APIKey != "" {
			g.APIKey = "***"
		}
		ai.Gemini = &g
		out.AI = &ai
	}
	return &out
}
