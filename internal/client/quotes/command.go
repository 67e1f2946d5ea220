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

// Package quotes contains the read-only client commands.
package quotes

import (
	"fmt"
	"net/url"

	"github.com/luigi-borriello-dev/dome-quotes/internal/client/shared"
	"github.com/luigi-borriello-dev/dome-quotes/internal/ui"
	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/spf13/cobra"
)

var (
	printJSON  bool
	category   string
	state      string
	externalID string
	buyerID    string
	role       string
)

func init() {
	for _, c := range Commands {
		c.Flags().BoolVarP(&printJSON, "json", "j", false, "output in JSON format")
	}
	ListCommand.Flags().StringVar(&category, "category", "", "only negotiations of this category")
	ListCommand.Flags().StringVar(&state, "state", "", "only negotiations in this state")
	ListCommand.Flags().StringVar(&externalID, "external-id", "", "only negotiations with this external id")
	ListCommand.Flags().StringVar(&buyerID, "buyer-id", "", "only negotiations of this buyer")
	ExplainCommand.Flags().StringVar(&role, "role", "", "role to explain for, defaults to the actor's")
}

// Commands are the commands of this package.
var Commands = []*cobra.Command{ShowCommand, ListCommand, ActionsCommand, ExplainCommand}

// ShowCommand prints one negotiation.
var ShowCommand = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a negotiation.",
	Long:  "Shows a negotiation with party names, dates, notes and what its state means for the actor.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, client, err := shared.ClientAndContext()
		if err != nil {
			return err
		}
		n, err := client.Get(ctx, args[0])
		if err != nil {
			return fmt.Errorf("could not get %s: %w", args[0], err)
		}
		return shared.PrintNegotiation(n, printJSON)
	},
}

// ListCommand lists negotiations.
var ListCommand = &cobra.Command{
	Use:   "list",
	Short: "List negotiations.",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if category != "" {
			if _, err := quote.ParseCategory(category); err != nil {
				return err
			}
		}
		if state != "" {
			if _, err := quote.ParseState(state); err != nil {
				return err
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, client, err := shared.ClientAndContext()
		if err != nil {
			return err
		}
		filter := url.Values{}
		for k, v := range map[string]string{
			"category": category, "state": state, "externalId": externalID, "buyerId": buyerID,
		} {
			if v != "" {
				filter.Set(k, v)
			}
		}
		l, err := client.List(ctx, filter)
		if err != nil {
			return fmt.Errorf("could not list negotiations: %w", err)
		}
		if !printJSON {
			ui.Info(fmt.Sprintf("%d negotiations", len(l.Negotiations)))
		}
		return shared.PrintList(l, printJSON)
	},
}

// ActionsCommand lists the states the actor can move a negotiation to.
var ActionsCommand = &cobra.Command{
	Use:   "actions <id>",
	Short: "List the transitions available to the actor.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, client, err := shared.ClientAndContext()
		if err != nil {
			return err
		}
		a, err := client.Actions(ctx, args[0])
		if err != nil {
			return fmt.Errorf("could not get actions of %s: %w", args[0], err)
		}
		return shared.PrintActions(a, printJSON)
	},
}

// ExplainCommand explains a state.
var ExplainCommand = &cobra.Command{
	Use:   "explain <category> <state>",
	Short: "Explain what a state means.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, client, err := shared.ClientAndContext()
		if err != nil {
			return err
		}
		e, err := client.Explain(ctx, args[0], args[1], role)
		if err != nil {
			return fmt.Errorf("could not explain %s %s: %w", args[0], args[1], err)
		}
		return shared.PrintExplanation(e, printJSON)
	},
}
