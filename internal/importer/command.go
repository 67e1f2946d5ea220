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

package importer

import (
	"context"
	"fmt"
	"os"

	"github.com/luigi-borriello-dev/dome-quotes/internal/cfg"
	"github.com/luigi-borriello-dev/dome-quotes/internal/server"
	"github.com/luigi-borriello-dev/dome-quotes/internal/ui"
	"github.com/luigi-borriello-dev/dome-quotes/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const skipExisting = "import.skipExisting"

func init() {
	cfg.AddFlag(Command, skipExisting, "skip-existing", "leave negotiations that are already stored alone", false)
}

// Command imports fixture files into the configured storage.
var Command = &cobra.Command{
	Use:   "import <fixtures.json>...",
	Short: "Import negotiations from JSON fixtures.",
	Long: `Loads negotiations into the storage selected with the persistence flags.
Every file is validated as a whole before any of its negotiations is stored.`,
	Args: cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.CheckFilesExist(args...); err != nil {
			return err
		}
		return server.StorageConfigFromViper().Validate()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, ok := viper.Get("initCTX").(context.Context)
		if !ok {
			return fmt.Errorf("couldn't fetch initial context")
		}
		provider, err := server.OpenStorage(ctx, server.StorageConfigFromViper())
		if err != nil {
			return fmt.Errorf("could not open storage: %w", err)
		}
		defer func() {
			if err := provider.Close(); err != nil {
				logging.Extract(ctx).Error("Could not close storage", "err", err)
			}
		}()

		loader := New(provider, viper.GetBool(skipExisting))
		for _, name := range args {
			fh, err := os.Open(name)
			if err != nil {
				return err
			}
			report, err := loader.Load(ctx, fh)
			_ = fh.Close()
			if err != nil {
				return fmt.Errorf("could not import %s: %w", name, err)
			}
			ui.Info(fmt.Sprintf("%s: imported %d, skipped %d", name, report.Imported, report.Skipped))
		}
		return nil
	},
}
