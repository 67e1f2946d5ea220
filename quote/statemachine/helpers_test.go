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

package statemachine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence/badger"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence/persistencetest"
	"github.com/luigi-borriello-dev/dome-quotes/quote/statemachine"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	buyerID  = "did:elsi:VATES-B0001"
	sellerID = "did:elsi:VATES-S0001"
	coordID  = "urn:ngsi-ld:quote:tender-1"
)

var (
	now     = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	buyer   = quote.Actor{ID: buyerID, Role: quote.RoleBuyer}
	seller  = quote.Actor{ID: sellerID, Role: quote.RoleSeller}
	pdfBody = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
)

func clock() time.Time { return now }

func newStore(t *testing.T) *badger.StorageProvider {
	t.Helper()
	store, err := badger.New(context.Background(), true, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newEngine(gw persistence.Gateway, opts ...statemachine.Option) *statemachine.Engine {
	return statemachine.New(gw, append([]statemachine.Option{statemachine.WithClock(clock)}, opts...)...)
}

func put(t *testing.T, store persistence.Importer, negotiations ...*quote.Negotiation) {
	t.Helper()
	for _, n := range negotiations {
		require.NoError(t, store.PutNegotiation(context.Background(), n))
	}
}

func tailored(id string, state quote.State, opts ...quote.Option) *quote.Negotiation {
	return quote.New(id, quote.CategoryTailored, persistencetest.Parties(buyerID, sellerID),
		append([]quote.Option{quote.WithState(state)}, opts...)...)
}

func coordinator(state quote.State, opts ...quote.Option) *quote.Negotiation {
	return quote.New(coordID, quote.CategoryCoordinator,
		[]quote.RelatedParty{{Role: quote.PartyBuyer, ID: buyerID, Name: "Buyer"}},
		append([]quote.Option{quote.WithState(state)}, opts...)...)
}

func invitation(id, seller string, state quote.State) *quote.Negotiation {
	return quote.New(id, quote.CategoryTender, persistencetest.Parties(buyerID, seller),
		quote.WithState(state), quote.WithExternalID(coordID))
}

func pdf(name string) quote.File {
	return quote.File{Name: name, MIMEType: "application/pdf", Content: pdfBody}
}

func noteTexts(n *quote.Negotiation) []string {
	var out []string
	for _, note := range n.GetNotes() {
		out = append(out, note.Text)
	}
	return out
}

// flakyGateway fails or blocks chosen calls for chosen ids. The maps are filled before use.
type flakyGateway struct {
	persistence.Gateway
	failSetState map[string]error
	failNote     map[string]error
	blockState   map[string]chan struct{}
}

func flaky(gw persistence.Gateway) *flakyGateway {
	return &flakyGateway{
		Gateway:      gw,
		failSetState: map[string]error{},
		failNote:     map[string]error{},
		blockState:   map[string]chan struct{}{},
	}
}

func (g *flakyGateway) SetState(
	ctx context.Context, id string, from, to quote.State,
) (*quote.Negotiation, error) {
	if ch, ok := g.blockState[id]; ok {
		<-ch
		return nil, errors.New("released")
	}
	if err := g.failSetState[id]; err != nil {
		return nil, err
	}
	return g.Gateway.SetState(ctx, id, from, to)
}

func (g *flakyGateway) AppendNote(ctx context.Context, id string, note quote.Note) (*quote.Negotiation, error) {
	if err := g.failNote[id]; err != nil {
		return nil, err
	}
	return g.Gateway.AppendNote(ctx, id, note)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) result(args mock.Arguments) (*quote.Negotiation, error) {
	n, _ := args.Get(0).(*quote.Negotiation)
	return n, args.Error(1)
}

func (m *mockGateway) GetNegotiation(ctx context.Context, id string) (*quote.Negotiation, error) {
	return m.result(m.Called(ctx, id))
}

func (m *mockGateway) QueryNegotiations(
	ctx context.Context, opts ...persistence.QueryOption,
) ([]*quote.Negotiation, error) {
	args := m.Called(ctx, persistence.NewFilter(opts...))
	ns, _ := args.Get(0).([]*quote.Negotiation)
	return ns, args.Error(1)
}

func (m *mockGateway) SetState(ctx context.Context, id string, from, to quote.State) (*quote.Negotiation, error) {
	return m.result(m.Called(ctx, id, from, to))
}

func (m *mockGateway) AppendNote(ctx context.Context, id string, note quote.Note) (*quote.Negotiation, error) {
	return m.result(m.Called(ctx, id, note))
}

func (m *mockGateway) SetScheduledDate(
	ctx context.Context, id string, kind quote.DateKind, date time.Time,
) (*quote.Negotiation, error) {
	return m.result(m.Called(ctx, id, kind, date))
}

func (m *mockGateway) StoreAttachment(ctx context.Context, id string, file quote.File) (*quote.Negotiation, error) {
	return m.result(m.Called(ctx, id, file))
}
