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

// Package lifecycle contains the client commands that change a single negotiation.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/luigi-borriello-dev/dome-quotes/internal/client/shared"
	"github.com/luigi-borriello-dev/dome-quotes/internal/ui"
	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/spf13/cobra"
)

var printJSON bool

func init() {
	for _, c := range Commands {
		c.Flags().BoolVarP(&printJSON, "json", "j", false, "output the updated negotiation in JSON format")
	}
}

// Commands are the commands of this package.
var Commands = []*cobra.Command{TransitionCommand, SetDateCommand, NoteCommand}

// TransitionCommand requests a state change.
var TransitionCommand = &cobra.Command{
	Use:   "transition <id> <state>",
	Short: "Move a negotiation to another state.",
	Long: `Requests a state change as the configured actor. The server checks the role,
the category rules and, for tender invitations, the state of the tender.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := quote.ParseState(args[1])
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, client, err := shared.ClientAndContext()
		if err != nil {
			return err
		}
		n, err := client.Transition(ctx, args[0], args[1])
		if err != nil {
			return fmt.Errorf("could not move %s to %s: %w", args[0], args[1], err)
		}
		ui.Info(fmt.Sprintf("%s is now %s", n.ID, n.State))
		return shared.PrintNegotiation(n, printJSON)
	},
}

// SetDateCommand sets a scheduled date.
var SetDateCommand = &cobra.Command{
	Use:   "set-date <id> <kind> <YYYY-MM-DD>",
	Short: "Set a scheduled date of a negotiation.",
	Long:  "Sets one of the requested, expected, fulfillmentStart or fulfillmentEnd dates.",
	Args:  cobra.ExactArgs(3),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := quote.ParseDateKind(args[1]); err != nil {
			return err
		}
		_, err := parseDate(args[2])
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, client, err := shared.ClientAndContext()
		if err != nil {
			return err
		}
		d, _ := parseDate(args[2])
		n, err := client.SetDate(ctx, args[0], args[1], d)
		if err != nil {
			return fmt.Errorf("could not set the %s date of %s: %w", args[1], args[0], err)
		}
		return shared.PrintNegotiation(n, printJSON)
	},
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// NoteCommand appends a note.
var NoteCommand = &cobra.Command{
	Use:   "note <id> <text>...",
	Short: "Add a note to a negotiation.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, client, err := shared.ClientAndContext()
		if err != nil {
			return err
		}
		n, err := client.AddNote(ctx, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return fmt.Errorf("could not add note to %s: %w", args[0], err)
		}
		return shared.PrintNegotiation(n, printJSON)
	},
}
