package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"orionos/pkg/store"
)

// Config is the orionctl configuration file. Flags win over file values,
// and ORIONCTL_* environment variables win over both for secrets.
type Config struct {
	DatabaseURL    string `yaml:"databaseURL"`
	DesktopURL     string `yaml:"desktopURL"`
	PrivateKeyPath string `yaml:"privateKeyPath"`
	KeyID          string `yaml:"keyId"`
	Issuer         string `yaml:"issuer"`
}

// openStore is swapped in tests.
var openStore = func(dsn string) (store.Store, error) {
	return store.NewGormStore(dsn)
}

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
)

// Root builds the orionctl command tree.
func Root(version string) *cobra.Command {
	var configPath string
	cfg := &Config{}
	root := &cobra.Command{
		Use:     "orionctl",
		Short:   "Operate the orionos desktop service",
		Version: version,
		Long: `orionctl seeds and inspects the app catalog, registers apps with a
running desktop service and manages the keys used for internal calls.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			mergeConfig(cfg, loaded)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("ORIONCTL_CONFIG"), "path to orionctl.yaml")
	root.PersistentFlags().StringVar(&cfg.DatabaseURL, "database-url", "", "postgres DSN of the desktop store")
	root.PersistentFlags().StringVar(&cfg.DesktopURL, "desktop-url", "", "base URL of the desktop service")
	root.PersistentFlags().StringVar(&cfg.PrivateKeyPath, "private-key", "", "PEM private key for internal tokens")
	root.PersistentFlags().StringVar(&cfg.KeyID, "kid", "", "key id placed in token headers")
	root.PersistentFlags().StringVar(&cfg.Issuer, "issuer", "", "issuer of internal tokens")

	root.AddCommand(appsCmd(cfg))
	root.AddCommand(tokenCmd(cfg))
	root.AddCommand(keysCmd())
	root.AddCommand(openapiCmd())
	return root
}

// LoadConfig reads the YAML file at path; an empty path yields defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if v := os.Getenv("ORIONCTL_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("ORIONCTL_PRIVATE_KEY"); v != "" {
		cfg.PrivateKeyPath = v
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "orionctl"
	}
	return cfg, nil
}

func mergeConfig(dst *Config, file Config) {
	if dst.DatabaseURL == "" {
		dst.DatabaseURL = file.DatabaseURL
	}
	if dst.DesktopURL == "" {
		dst.DesktopURL = file.DesktopURL
	}
	if dst.PrivateKeyPath == "" {
		dst.PrivateKeyPath = file.PrivateKeyPath
	}
	if dst.KeyID == "" {
		dst.KeyID = file.KeyID
	}
	if dst.Issuer == "" {
		dst.Issuer = file.Issuer
	}
}

func (c *Config) store() (store.Store, error) {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return nil, fmt.Errorf("database URL required\nHint: pass --database-url or set ORIONCTL_DATABASE_URL")
	}
	return openStore(c.DatabaseURL)
}
