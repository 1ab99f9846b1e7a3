/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ritesh-sh/Blog-AI/internal/config"
	"github.com/Ritesh-sh/Blog-AI/internal/logger"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "blogai",
		Short: "Blog-AI turns a web article into an SEO-ready blog post.",
		Long: `Blog-AI fetches an article, extracts its text, ranks keywords, classifies
its topic and asks Gemini to write a structured blog post around it. The post
is refined for search (meta description, tags, keyword coverage), paired with
an optional Unsplash image and stored in the per-user history.

Run it as an HTTP service with 'blogai serve' or one-off with 'blogai generate'.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.blogai.yaml or $HOME/.blogai.yaml)")

	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewGenerateCmd())
	rootCmd.AddCommand(NewHistoryCmd())
	rootCmd.AddCommand(NewEstimateCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies its logging section.
// levelOverride replaces logging.level when non-empty.
func loadConfig(levelOverride string) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if levelOverride != "" {
		level = levelOverride
	}
	if err := logger.Configure(logger.Options{
		Level:    level,
		Format:   cfg.Logging.Format,
		FilePath: cfg.Logging.FilePath,
	}); err != nil {
		return nil, err
	}

	if cfg.App.ConfigFile != "" {
		logger.Debug("Using config file", "path", cfg.App.ConfigFile)
	}
	return cfg, nil
}
