package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	app = "fruit-matcher"
)

type Config struct {
	Store       *StoreConfig    `mapstructure:"store"`
	Matching    *MatchingConfig `mapstructure:"matching"`
	ExcludeFile string          `mapstructure:"exclude-file"`
	AI          *AIConfig       `mapstructure:"ai"`
	HTTP        *HTTPConfig     `mapstructure:"http"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type MatchingConfig struct {
	Limit   int `mapstructure:"limit"`
	Workers int `mapstructure:"workers"`
}

type AIConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Provider      string        `mapstructure:"provider"`
	RatePerSecond float64       `mapstructure:"rate-per-second"`
	Burst         int           `mapstructure:"burst"`
	MaxLogLength  int           `mapstructure:"max-log-length"`
	Gemini        *GeminiConfig `mapstructure:"gemini"`
	OpenAI        *OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type OpenAIConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseURL    string `mapstructure:"base-url"`
	Model      string `mapstructure:"model"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed-origins"`
	ReadTimeout     time.Duration `mapstructure:"read-timeout"`
	WriteTimeout    time.Duration `mapstructure:"write-timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "fruit-matcher pairs apples with oranges by mutual compatibility",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range map[string]string{
		"store.path":             "FRUIT_MATCHER_STORE",
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"ai.openai.api-key-file": "OPENAI_API_KEY_FILE",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is fruit-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error); overrides --debug")
	rootCmd.PersistentFlags().String("store", "", "path to the sqlite database")
	rootCmd.PersistentFlags().StringP("exclude-file", "e", "", "special file with fruits to exclude. Default is unset.")

	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"debug":        "debug",
		"json":         "json",
		"log-level":    "log-level",
		"store.path":   "store",
		"exclude-file": "exclude-file",
	})
}

// bindFlags binds config keys to the named flags of fs.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			log.Fatalf("binding flag %s to %s: %v", name, key, err)
		}
	}
}

func setDefaults() {
	viper.SetDefault("store.path", app+".db")
	viper.SetDefault("matching.limit", 5)
	viper.SetDefault("matching.workers", 4)
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.rate-per-second", 1.0)
	viper.SetDefault("ai.burst", 1)
	viper.SetDefault("ai.max-log-length", 200)
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("http.addr", ":8080")
	viper.SetDefault("http.read-timeout", 10*time.Second)
	viper.SetDefault("http.write-timeout", 60*time.Second)
	viper.SetDefault("http.shutdown-timeout", 15*time.Second)
}

func initConfig() {
	// The version command needs no config.
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// A missing default config is fine: defaults, env and flags cover everything.
	// A config that exists but does not parse is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
