package cmd

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	appName   = "jobswipe"
	envPrefix = "JOBSWIPE"
)

type Config struct {
	APIURL    string         `mapstructure:"api-url"`
	UserAgent string         `mapstructure:"user-agent"`
	Timeout   time.Duration  `mapstructure:"timeout"`
	Output    string         `mapstructure:"output"`
	Session   *SessionConfig `mapstructure:"session"`
	Swipe     *SwipeConfig   `mapstructure:"swipe"`
	Exclude   *ExcludeConfig `mapstructure:"exclude"`
	AI        *AIConfig      `mapstructure:"ai"`
}

type SessionConfig struct {
	// Backend is "file" or "redis".
	Backend string       `mapstructure:"backend"`
	File    string       `mapstructure:"file"`
	Redis   *RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	PasswordFile string `mapstructure:"password-file"`
	DB           int    `mapstructure:"db"`
	Prefix       string `mapstructure:"prefix"`
}

type SwipeConfig struct {
	Width          float64       `mapstructure:"width"`
	ThresholdRatio float64       `mapstructure:"threshold-ratio"`
	Delivery       string        `mapstructure:"delivery"`
	SubmitTimeout  time.Duration `mapstructure:"submit-timeout"`
	Outbox         *OutboxConfig `mapstructure:"outbox"`
}

type OutboxConfig struct {
	BaseDelay   time.Duration `mapstructure:"base-delay"`
	MaxDelay    time.Duration `mapstructure:"max-delay"`
	MaxAttempts int           `mapstructure:"max-attempts"`
}

type ExcludeConfig struct {
	Companies []string `mapstructure:"companies"`
	File      string   `mapstructure:"file"`
}

type AIConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Provider        string        `mapstructure:"provider"`
	MinimumFitScore float64       `mapstructure:"minimum-fit-score"`
	Preferences     string        `mapstructure:"preferences"`
	Gemini          *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

const (
	deliveryDirect = "direct"
	deliveryOutbox = "outbox"

	backendFile  = "file"
	backendRedis = "redis"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           appName,
		Short:         "jobswipe is a terminal client for swiping through job offers and answering matches",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobswipe.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().StringP("output", "o", "text", "output format: text, json or yaml")
	rootCmd.PersistentFlags().String("api-url", "", "backend base url")
	rootCmd.PersistentFlags().StringP("exclude-file", "e", "", "file with job ids to hide from the feed")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("api-url", rootCmd.PersistentFlags().Lookup("api-url"))
	viper.BindPFlag("exclude.file", rootCmd.PersistentFlags().Lookup("exclude-file"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api-url", "http://localhost:8000")
	v.SetDefault("user-agent", "")
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("output", "text")

	v.SetDefault("session.backend", backendFile)
	v.SetDefault("session.file", defaultSessionFile())
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.password-file", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.prefix", "jobswipe:session:")

	v.SetDefault("swipe.width", float64(defaultCardWidth))
	v.SetDefault("swipe.threshold-ratio", 0.25)
	v.SetDefault("swipe.delivery", deliveryDirect)
	v.SetDefault("swipe.submit-timeout", 15*time.Second)
	v.SetDefault("swipe.outbox.base-delay", time.Second)
	v.SetDefault("swipe.outbox.max-delay", time.Minute)
	v.SetDefault("swipe.outbox.max-attempts", 8)

	v.SetDefault("exclude.companies", []string{})
	v.SetDefault("exclude.file", "")

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.minimum-fit-score", 0.5)
	v.SetDefault("ai.preferences", "")
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.max-retries", 3)
	v.SetDefault("ai.gemini.max-log-length", 200)
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "." + appName + "-session.json"
	}
	return dir + string(os.PathSeparator) + appName + string(os.PathSeparator) + "session.json"
}

func initConfig() {
	// A missing .env is fine; a broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(appName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			// We can't proceed if the config file parsed with error.
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return config, nil
}
