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

package shared

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/fatih/color"
	"github.com/luigi-borriello-dev/dome-quotes/internal/ui"
	quoteshared "github.com/luigi-borriello-dev/dome-quotes/quote/shared"
	"github.com/spf13/viper"
)

var bold = color.New(color.Bold)

// PrintJSON pretty prints any document, highlighted unless colour is disabled.
func PrintJSON[T any](o T) error {
	b, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("could not marshal output: %w", err)
	}
	var buf bytes.Buffer
	err = json.Indent(&buf, b, "", "  ")
	if err != nil {
		return fmt.Errorf("could not indent JSON: %w", err)
	}
	buf.WriteByte('\n')
	if viper.GetBool(NoColor) || color.NoColor {
		ui.Print(buf.String())
		return nil
	}
	return quick.Highlight(os.Stdout, buf.String(), "json", "terminal256", "catppuccin-mocha")
}

func row(w io.Writer, key string, value any) {
	fmt.Fprintf(w, "%s\t%v\n", bold.Sprint(key), value)
}

func date(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

// PrintNegotiation prints a negotiation, either as a table or as JSON.
func PrintNegotiation(n quoteshared.Negotiation, printJSON bool) error {
	if printJSON {
		return PrintJSON(n)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', 0)
	row(w, "ID", n.ID)
	row(w, "Category", n.Category)
	row(w, "State", n.State)
	if n.Label != "" {
		row(w, "Label", n.Label)
	}
	if n.ExternalID != "" {
		row(w, "External ID", n.ExternalID)
	}
	if n.Description != "" {
		row(w, "Description", n.Description)
	}
	row(w, "Product", n.Product.Name)
	for _, p := range n.Parties {
		v := p.Name
		if p.VATID != "" {
			v = fmt.Sprintf("%s (VAT %s)", p.Name, p.VATID)
		}
		row(w, fmt.Sprintf("Party (%s)", p.Role), v)
	}
	row(w, "Requested date", date(n.Dates.Requested))
	row(w, "Expected date", date(n.Dates.Expected))
	if n.Dates.FulfillmentStart != nil || n.Dates.FulfillmentEnd != nil {
		row(w, "Fulfillment", fmt.Sprintf("%s to %s", date(n.Dates.FulfillmentStart), date(n.Dates.FulfillmentEnd)))
	}
	if n.Attachment != nil {
		row(w, "Attachment", fmt.Sprintf("%s, %d bytes", n.Attachment.Name, n.Attachment.Size))
	}
	if n.Tender != nil {
		row(w, "Tender", fmt.Sprintf("%s (%s)", n.Tender.ID, n.Tender.State))
	}
	if n.Status != nil {
		row(w, "Status", n.Status.Explanation)
		row(w, "Next steps", n.Status.AvailableActions)
	}
	row(w, "Updated", n.Updated.Format(time.RFC3339))
	for _, note := range n.Notes {
		row(w, fmt.Sprintf("Note %s", note.Date.Format(time.RFC3339)), fmt.Sprintf("%s: %s", note.AuthorID, note.Text))
	}
	return w.Flush()
}

// PrintList prints negotiation summaries, either as a table or as JSON.
func PrintList(l quoteshared.List, printJSON bool) error {
	if printJSON {
		return PrintJSON(l)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, bold.Sprint("ID\tCATEGORY\tSTATE\tEXTERNAL ID\tBUYER\tSELLER\tUPDATED"))
	for _, s := range l.Negotiations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Category, s.State, s.ExternalID, s.BuyerID, s.SellerID, s.Updated.Format(time.RFC3339))
	}
	return w.Flush()
}

// PrintActions prints the states an actor can move to.
func PrintActions(a quoteshared.Actions, printJSON bool) error {
	if printJSON {
		return PrintJSON(a)
	}
	if len(a.Actions) == 0 {
		ui.Info(fmt.Sprintf("No actions available on %s", a.ID))
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, act := range a.Actions {
		row(w, act.State, act.Label)
	}
	return w.Flush()
}

// PrintExplanation prints what a state means for a role.
func PrintExplanation(e quoteshared.Explanation, printJSON bool) error {
	if printJSON {
		return PrintJSON(e)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', 0)
	row(w, "State", fmt.Sprintf("%s %s (%s)", e.Category, e.State, e.Role))
	row(w, "Label", e.Label)
	row(w, "Explanation", e.Explanation)
	row(w, "Next steps", e.AvailableActions)
	return w.Flush()
}

// PrintFailures warns about every failed child, in id order.
func PrintFailures(failures map[string]string) {
	ids := make([]string, 0, len(failures))
	for id := range failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		ui.Warn(fmt.Sprintf("%s: %s", id, strings.TrimSpace(failures[id])))
	}
}
