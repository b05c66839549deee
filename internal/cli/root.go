package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/safeguard/internal/model"
)

var (
	cfgFile string
	verbose bool

	// appConfig is loaded once before any subcommand runs
	appConfig *model.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "safeguard",
	Short: "SafeGuard - medical content safety gate",
	Long: `SafeGuard screens health-related text before it reaches a user.

Each evaluation runs four stages:
- Rule filter: dosage, prescription, diagnosis and emergency patterns
- Evidence: claims are checked against tiered trusted sources
- Decision: ALLOW, ALLOW_WITH_WARNING, ASK_MORE_INFO, ESCALATE or REFUSE
- Explanation: a short user-facing reason

SafeGuard is not a medical device and gives no medical advice.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper(), cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Log.Level = "debug"
		}
		slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.Log))
		appConfig = cfg
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "safeguard v%s\n", model.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.safeguard/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// loadConfig layers defaults, the config file and SAFEGUARD_* variables,
// then fills API keys from their conventional environment variables.
func loadConfig(v *viper.Viper, path string) (*model.Config, error) {
	defaults, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("marshal defaults: %w", err)
	}
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".safeguard"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("SAFEGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyEnvKeys(cfg, os.Getenv)
	return cfg, nil
}

// applyEnvKeys fills credentials the config file left empty
func applyEnvKeys(cfg *model.Config, getenv func(string) string) {
	setIfEmpty := func(dst *string, key string) {
		if *dst == "" {
			*dst = getenv(key)
		}
	}

	g := &cfg.Search.Google
	setIfEmpty(&g.APIKey, "GOOGLE_SEARCH_API_KEY")
	setIfEmpty(&g.CX, "GOOGLE_SEARCH_CX")
	setIfEmpty(&g.BackupAPIKey, "GOOGLE_SEARCH_API_KEY_BACKUP")
	setIfEmpty(&g.BackupCX, "GOOGLE_SEARCH_CX_BACKUP")

	for _, role := range []*model.ProviderConfig{&cfg.LLM.Explainer, &cfg.LLM.Chat, &cfg.LLM.Extractor} {
		switch strings.ToLower(role.Provider) {
		case "gemini", "google":
			setIfEmpty(&role.APIKey, "GEMINI_API_KEY")
		case "groq":
			setIfEmpty(&role.APIKey, "GROQ_API_KEY")
		case "openai":
			setIfEmpty(&role.APIKey, "OPENAI_API_KEY")
		case "anthropic", "claude":
			setIfEmpty(&role.APIKey, "ANTHROPIC_API_KEY")
		case "ollama":
			setIfEmpty(&role.BaseURL, "OLLAMA_BASE_URL")
		}
	}
}

func newLogger(w io.Writer, cfg model.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
