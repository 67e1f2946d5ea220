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

// Package attachment offers commands to upload and download the attachment of a negotiation.
package attachment

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/luigi-borriello-dev/dome-quotes/internal/client/shared"
	"github.com/luigi-borriello-dev/dome-quotes/internal/ui"
	"github.com/spf13/cobra"
)

func init() {
	DownloadCommand.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory to download the attachment to")
	UploadCommand.Flags().StringVar(&mimeType, "mime-type", "", "MIME type to declare, detected from the content if empty")
	UploadCommand.Flags().BoolVarP(&printJSON, "json", "j", false, "output the result in JSON format")
}

var (
	outputDir string
	mimeType  string
	printJSON bool
)

// UploadCommand uploads a file as the attachment of a negotiation.
var UploadCommand = &cobra.Command{
	Use:   "upload <id> <file>",
	Short: "Upload the attachment of a negotiation.",
	Long: `Uploads a PDF as the quote attachment. On a tailored quote in progress
the seller's upload also approves the quote.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, client, err := shared.ClientAndContext()
		if err != nil {
			return err
		}
		content, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("could not read %s: %w", args[1], err)
		}
		declared := mimeType
		if declared == "" {
			declared = mimetype.Detect(content).String()
		}

		res, err := client.Upload(ctx, args[0], filepath.Base(args[1]), declared, content)
		if err != nil {
			return fmt.Errorf("could not upload %s: %w", args[1], err)
		}
		if printJSON {
			return shared.PrintJSON(res)
		}
		ui.Info(fmt.Sprintf("Uploaded %s to %s", filepath.Base(args[1]), args[0]))
		switch {
		case res.AutoApproved:
			ui.Info(fmt.Sprintf("%s is now %s", res.Negotiation.ID, res.Negotiation.State))
		case res.AutoApproveError != "":
			ui.Warn(fmt.Sprintf("Attachment kept but the quote was not approved: %s", res.AutoApproveError))
		}
		return shared.PrintNegotiation(res.Negotiation, false)
	},
}

// DownloadCommand saves the attachment of a negotiation into a directory.
var DownloadCommand = &cobra.Command{
	Use:   "download <id>",
	Short: "Download the attachment of a negotiation.",
	Args:  cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkWritable(outputDir)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, client, err := shared.ClientAndContext()
		if err != nil {
			return err
		}
		n, err := client.Get(ctx, args[0])
		if err != nil {
			return fmt.Errorf("could not get %s: %w", args[0], err)
		}
		if n.Attachment == nil {
			return fmt.Errorf("%s has no attachment", args[0])
		}

		ui.Info(fmt.Sprintf("Downloading %s", n.Attachment.Name))
		content, err := client.Download(ctx, args[0])
		if err != nil {
			return fmt.Errorf("could not download attachment of %s: %w", args[0], err)
		}
		dlPath := filepath.Join(outputDir, filepath.Base(n.Attachment.Name))
		if err := os.WriteFile(dlPath, content, 0o600); err != nil {
			return fmt.Errorf("couldn't write %s: %w", dlPath, err)
		}
		ui.Info(fmt.Sprintf("%s successfully downloaded to %s", n.Attachment.Name, dlPath))
		return nil
	},
}

// checkWritable sees if a file can be created in dir.
func checkWritable(dir string) error {
	s, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("could not stat directory %s: %w", dir, err)
	}
	if !s.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	var errStat error
	var testFile string
	for errStat == nil {
		testFile = filepath.Join(dir, strconv.FormatUint(rand.Uint64(), 10)) //nolint:gosec
		_, errStat = os.Stat(testFile)
	}
	if !errors.Is(errStat, os.ErrNotExist) {
		return fmt.Errorf("could not find a test file to write to: %w", errStat)
	}
	if err := os.WriteFile(testFile, []byte{1}, 0o600); err != nil {
		return fmt.Errorf("could not write to file %s: %w", testFile, err)
	}
	if err := os.Remove(testFile); err != nil {
		return fmt.Errorf("could not remove file %s: %w", testFile, err)
	}
	return nil
}
