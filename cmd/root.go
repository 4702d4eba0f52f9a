/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

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
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.3.0"

// v holds the merged configuration. Flags bound to it take precedence over
// the environment, the config file and the defaults.
var v = viper.New()

var (
	cfgFile  string
	logLevel string
	logFile  string
	dbPath   string
)

var rootCmd = &cobra.Command{
	Use:   "translate-ai-pdf",
	Short: "Resumable Arabic to Russian document translator",
	Long: `A CLI application that splits a document (PDF or plain text) into
translation units and translates them one at a time with an LLM or a
machine translation provider.

Progress is recorded per unit in a SQLite ledger: an interrupted run
continues where it stopped when the same command is repeated.

Supported providers: anthropic, openai, ollama, googleai, openrouter, google

Use "translate-ai-pdf translate --help" for translation options.`,
	Version:      version,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./data/ledger.db", "Ledger database path")

	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
	_ = v.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
}
