package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/safeguard/internal/model"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage SafeGuard configuration",
	Long: `Manage SafeGuard configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (SAFEGUARD_*, plus API key variables)
3. Config file (~/.safeguard/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after defaults, config file and environment are applied. API keys are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(maskSecrets(*appConfig))
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Fprintln(out, string(yamlData))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.safeguard/config.yaml (or the --config path).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := cfgFile
		if configPath == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("error finding home directory: %w", err)
			}
			configPath = filepath.Join(home, ".safeguard", "config.yaml")
		}

		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created default configuration: %s\n", configPath)
		fmt.Fprintf(out, "\nTo view the configuration:\n  safeguard config show\n")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

// writeDefaultConfig writes the documented default configuration. It
// refuses to overwrite an existing file.
func writeDefaultConfig(configPath string) (err error) {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'safeguard config show' to view it, or delete it first to recreate", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close config file: %w", closeErr)
		}
	}()

	return renderDefaultConfig(f)
}

func renderDefaultConfig(w io.Writer) error {
	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	header := `# SafeGuard Configuration File
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (SAFEGUARD_*, e.g. SAFEGUARD_SERVER_ADDR)
#   3. This config file
#   4. Built-in defaults
#
# Durations use Go syntax, e.g. 5s or 1m30s.

`
	footer := `
# API keys (recommended to use environment variables instead):
#   export GOOGLE_SEARCH_API_KEY=...   GOOGLE_SEARCH_CX=...
#   export GOOGLE_SEARCH_API_KEY_BACKUP=...   GOOGLE_SEARCH_CX_BACKUP=...
#   export GEMINI_API_KEY=...
#   export GROQ_API_KEY=...
#   export OPENAI_API_KEY=sk-...
#   export ANTHROPIC_API_KEY=sk-ant-...
#   export OLLAMA_BASE_URL=http://localhost:11434
`
	for _, part := range [][]byte{[]byte(header), yamlData, []byte(footer)} {
		if _, err := w.Write(part); err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}
	}
	return nil
}

func maskSecrets(cfg model.Config) model.Config {
	mask := func(s *string) {
		if *s != "" {
			*s = "****"
		}
	}
	mask(&cfg.Search.Google.APIKey)
	mask(&cfg.Search.Google.BackupAPIKey)
	mask(&cfg.LLM.Explainer.APIKey)
	mask(&cfg.LLM.Chat.APIKey)
	mask(&cfg.LLM.Extractor.APIKey)
	return cfg
}
