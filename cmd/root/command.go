// Copyright 2024 Luigi Borriello
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package root contains the root command of dome-quotes.
package root

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/luigi-borriello-dev/dome-quotes/internal/cfg"
	"github.com/luigi-borriello-dev/dome-quotes/internal/client"
	"github.com/luigi-borriello-dev/dome-quotes/internal/importer"
	"github.com/luigi-borriello-dev/dome-quotes/internal/server"
	"github.com/luigi-borriello-dev/dome-quotes/internal/ui"
	"github.com/luigi-borriello-dev/dome-quotes/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix     = "DOMEQUOTES"
	configDir     = "/etc/dome-quotes"
	configName    = "dome-quotes"
	logLevel      = "logLevel"
	debug         = "debug"
	humanReadable = "humanReadable"
)

var (
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "dome-quotes",
	Short: "dome-quotes runs quote negotiations between buyers and sellers.",
	Long: `A quote negotiation service for a marketplace. It tracks tailored quotes,
tenders and the invitations of a tender through their lifecycle.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

// setupLogging builds the logger every subcommand finds in viper's initCTX.
func setupLogging(_ *cobra.Command, _ []string) error {
	level := viper.GetString(logLevel)
	if _, err := logging.ParseLevel(level); err != nil {
		return fmt.Errorf("invalid log level %q: use debug, info, warn or error", level)
	}
	human := viper.GetBool(humanReadable) || logging.IsTerminal()
	if viper.GetBool(debug) {
		level, human = "debug", true
	}
	viper.Set("initCTX", logging.Inject(context.Background(), logging.New(level, human)))
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)
	// The client commands have their own pre-run checks, the root one must still run.
	cobra.EnableTraverseRunHooks = true

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "",
		fmt.Sprintf("config file (default is %s/%s.toml)", configDir, configName))
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file to load if present")
	cfg.AddPersistentFlag(rootCmd, debug, "debug", "debug logging in a human readable format", false)
	cfg.AddPersistentFlag(rootCmd, humanReadable, "human-readable", "log in a human readable format", false)
	cfg.AddPersistentFlag(rootCmd, logLevel, "log-level", "log level: debug, info, warn or error", "info")

	server.AddStorageFlags(rootCmd)
	rootCmd.AddCommand(server.Command, importer.Command, client.Command)
}

func initConfig() {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		ui.Warn(fmt.Sprintf("could not load %s: %s", envFile, err))
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(configDir)
		viper.SetConfigName(configName)
		viper.SetConfigType("toml")
	}
	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		ui.Info("using config file " + viper.ConfigFileUsed())
	case errors.As(err, &notFound):
	default:
		ui.Error(fmt.Sprintf("could not read config: %s", err))
		os.Exit(1)
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.Error(err.Error())
		os.Exit(1)
	}
}
