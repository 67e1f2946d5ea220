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

// Package tender contains the client commands acting on a tender and its invitations.
package tender

import (
	"fmt"
	"strings"

	"github.com/luigi-borriello-dev/dome-quotes/internal/client/shared"
	"github.com/luigi-borriello-dev/dome-quotes/internal/ui"
	"github.com/spf13/cobra"
)

var printJSON bool

func init() {
	CancelCommand.Flags().BoolVarP(&printJSON, "json", "j", false, "output the result in JSON format")
	BroadcastCommand.Flags().BoolVarP(&printJSON, "json", "j", false, "output the result in JSON format")
}

// CancelCommand cancels a tender together with its open invitations.
var CancelCommand = &cobra.Command{
	Use:   "cancel-tender <tender_id>",
	Short: "Cancel a tender and its invitations.",
	Long: `Cancels every open invitation of a tender, then the tender itself. Invitations
that could not be cancelled are listed, the tender is cancelled regardless.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, client, err := shared.ClientAndContext()
		if err != nil {
			return err
		}
		res, err := client.CancelTender(ctx, args[0])
		if err != nil {
			if res.Error != nil {
				ui.Info(fmt.Sprintf("Cancelled %d invitations, skipped %d already closed",
					res.ChildrenCancelled, res.ChildrenSkipped))
				shared.PrintFailures(res.Failures)
			}
			return fmt.Errorf("could not cancel tender %s: %w", args[0], err)
		}
		if printJSON {
			return shared.PrintJSON(res)
		}
		ui.Info(fmt.Sprintf("Cancelled %d invitations, skipped %d already closed",
			res.ChildrenCancelled, res.ChildrenSkipped))
		shared.PrintFailures(res.Failures)
		if res.Negotiation != nil {
			if err := shared.PrintNegotiation(*res.Negotiation, false); err != nil {
				return err
			}
		}
		if res.ChildrenFailed > 0 {
			return fmt.Errorf("%d invitations of %s were not cancelled", res.ChildrenFailed, args[0])
		}
		return nil
	},
}

// BroadcastCommand sends a note to every open invitation of a tender.
var BroadcastCommand = &cobra.Command{
	Use:   "broadcast <tender_id> <message>...",
	Short: "Send a message to every invited seller.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, client, err := shared.ClientAndContext()
		if err != nil {
			return err
		}
		res, err := client.Broadcast(ctx, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return fmt.Errorf("could not broadcast to %s: %w", args[0], err)
		}
		if printJSON {
			return shared.PrintJSON(res)
		}
		if res.NoOp {
			ui.Warn(fmt.Sprintf("Tender %s has no open invitations", args[0]))
			return nil
		}
		ui.Info(fmt.Sprintf("Sent to %d of %d invitations", res.Sent, res.Recipients))
		shared.PrintFailures(res.Failures)
		if res.Failed > 0 {
			return fmt.Errorf("%d invitations of %s did not receive the message", res.Failed, args[0])
		}
		return nil
	},
}
