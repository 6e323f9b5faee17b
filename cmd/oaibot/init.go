package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type defaultConfig struct {
	DataDir string `yaml:"data_dir"`
	API     struct {
		Base string `yaml:"base"`
		Key  string `yaml:"key"`
	} `yaml:"api"`
	Store struct {
		Backend string `yaml:"backend"`
		Redis   struct {
			Addr   string `yaml:"addr"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"store"`
	Chat struct {
		TimeoutSeconds int `yaml:"timeout_seconds"`
	} `yaml:"chat"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Initialize config.yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "~/.oaibot/"
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = args[0]
			}
			dir = filepath.Clean(expandHome(dir))

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}

			cfgPath := filepath.Join(dir, "config.yaml")
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists: %s", cfgPath)
			}

			cfg := defaultConfig{DataDir: dir}
			cfg.Store.Backend = "file"
			cfg.Store.Redis.Addr = "127.0.0.1:6379"
			cfg.Store.Redis.Prefix = "oaibot"
			cfg.Chat.TimeoutSeconds = 300
			cfg.Logging.Level = "info"
			cfg.Logging.Format = "text"

			body, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			if err := os.WriteFile(cfgPath, body, 0o644); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cfgPath)
			return nil
		},
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
