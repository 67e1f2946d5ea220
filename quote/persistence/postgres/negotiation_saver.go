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

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/luigi-borriello-dev/dome-quotes/logging"
	"github.com/luigi-borriello-dev/dome-quotes/quote"
	"github.com/luigi-borriello-dev/dome-quotes/quote/persistence"
)

const negotiationColumns = `id, category, external_id, state, description, product_id, parties,
	requested_date, expected_date, fulfillment_start, fulfillment_end,
	attachment_name, attachment_mime, attachment_size, attachment_uploaded_at,
	created_at, updated_at, version`

var dateColumns = map[quote.DateKind]string{
	quote.DateRequested:        "requested_date",
	quote.DateExpected:         "expected_date",
	quote.DateFulfillmentStart: "fulfillment_start",
	quote.DateFulfillmentEnd:   "fulfillment_end",
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetNegotiation returns a read-only negotiation.
func (sp *StorageProvider) GetNegotiation(ctx context.Context, id string) (*quote.Negotiation, error) {
	return load(ctx, sp.pool, id)
}

// QueryNegotiations returns the read-only negotiations matching the options.
func (sp *StorageProvider) QueryNegotiations(
	ctx context.Context,
	opts ...persistence.QueryOption,
) ([]*quote.Negotiation, error) {
	filter := persistence.NewFilter(opts...)
	var conds []string
	var args []any
	argIndex := 1
	add := func(column string, value any) {
		conds = append(conds, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}
	if filter.Category != "" {
		add("category", filter.Category)
	}
	if filter.ExternalID != "" {
		add("external_id", filter.ExternalID)
	}
	if filter.BuyerID != "" {
		add("buyer_id", filter.BuyerID)
	}
	if filter.State != "" {
		add("state", filter.State)
	}
	query := "SELECT " + negotiationColumns + " FROM negotiations"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := sp.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying negotiations: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (quote.Record, error) {
		return scanRecord(row)
	})
	if err != nil {
		return nil, err
	}

	negotiations := make([]*quote.Negotiation, 0, len(records))
	for _, r := range records {
		if r.Notes, err = loadNotes(ctx, sp.pool, r.ID); err != nil {
			return nil, err
		}
		negotiations = append(negotiations, quote.FromRecord(r, true))
	}
	logging.Extract(ctx).Debug("Queried negotiations", "matched", len(negotiations))
	return negotiations, nil
}

// SetState moves the negotiation to the new state if it is still in the expected one.
func (sp *StorageProvider) SetState(
	ctx context.Context, id string, from, to quote.State,
) (*quote.Negotiation, error) {
	if !quote.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: can't transition from %s to %s", quote.ErrInvalidTransition, from, to)
	}
	return sp.mutate(ctx, id, func(tx pgx.Tx) (pgconn.CommandTag, error) {
		return tx.Exec(ctx,
			`UPDATE negotiations SET state = $1, updated_at = now(), version = version + 1
			 WHERE id = $2 AND state = $3`,
			to, id, from)
	}, func(tx pgx.Tx) error {
		var state string
		if err := tx.QueryRow(ctx, "SELECT state FROM negotiations WHERE id = $1", id).Scan(&state); err != nil {
			return err
		}
		return quote.Conflict(id, fmt.Sprintf("state is %s, expected %s", state, from))
	})
}

// AppendNote appends a note to the negotiation.
func (sp *StorageProvider) AppendNote(ctx context.Context, id string, note quote.Note) (*quote.Negotiation, error) {
	return sp.mutate(ctx, id, func(tx pgx.Tx) (pgconn.CommandTag, error) {
		tag, err := tx.Exec(ctx,
			"UPDATE negotiations SET updated_at = now(), version = version + 1 WHERE id = $1", id)
		if err != nil || tag.RowsAffected() == 0 {
			return tag, err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO notes (id, negotiation_id, author_id, body, created_at) VALUES ($1, $2, $3, $4, $5)`,
			note.ID, id, note.AuthorID, note.Text, note.Date)
		return tag, err
	}, nil)
}

// SetScheduledDate sets one of the scheduling dates.
func (sp *StorageProvider) SetScheduledDate(
	ctx context.Context, id string, kind quote.DateKind, date time.Time,
) (*quote.Negotiation, error) {
	column, ok := dateColumns[kind]
	if !ok {
		return nil, quote.Invalid("kind", "unknown date kind %s", kind)
	}
	return sp.mutate(ctx, id, func(tx pgx.Tx) (pgconn.CommandTag, error) {
		return tx.Exec(ctx,
			`UPDATE negotiations SET `+pq.QuoteIdentifier(column)+` = $1, updated_at = now(),
			 version = version + 1 WHERE id = $2`,
			nullTime(date), id)
	}, nil)
}

// StoreAttachment stores the file content and points the negotiation at it.
func (sp *StorageProvider) StoreAttachment(
	ctx context.Context, id string, file quote.File,
) (*quote.Negotiation, error) {
	if err := persistence.CheckFile(file); err != nil {
		return nil, err
	}
	att := persistence.NewAttachment(id, file)
	return sp.mutate(ctx, id, func(tx pgx.Tx) (pgconn.CommandTag, error) {
		tag, err := tx.Exec(ctx,
			`UPDATE negotiations SET attachment_name = $1, attachment_mime = $2, attachment_size = $3,
			 attachment_uploaded_at = $4, updated_at = now(), version = version + 1 WHERE id = $5`,
			att.Name, att.MIMEType, att.Size, att.UploadedAt, id)
		if err != nil || tag.RowsAffected() == 0 {
			return tag, err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO attachments (negotiation_id, content) VALUES ($1, $2)
			 ON CONFLICT (negotiation_id) DO UPDATE SET content = excluded.content`,
			id, file.Content)
		return tag, err
	}, nil)
}

// GetAttachment returns the attachment reference and its content.
func (sp *StorageProvider) GetAttachment(ctx context.Context, id string) (quote.Attachment, []byte, error) {
	n, err := sp.GetNegotiation(ctx, id)
	if err != nil {
		return quote.Attachment{}, nil, err
	}
	att := n.GetAttachment()
	if att == nil {
		return quote.Attachment{}, nil, fmt.Errorf("%w: %s has no attachment", quote.ErrNotFound, id)
	}
	var content []byte
	err = sp.pool.QueryRow(ctx, "SELECT content FROM attachments WHERE negotiation_id = $1", id).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return quote.Attachment{}, nil, fmt.Errorf("%w: attachment content of %s", quote.ErrNotFound, id)
		}
		return quote.Attachment{}, nil, err
	}
	return *att, content, nil
}

// PutNegotiation inserts or fully replaces a negotiation, including its notes.
func (sp *StorageProvider) PutNegotiation(ctx context.Context, negotiation *quote.Negotiation) error {
	r := negotiation.ToRecord()
	parties, err := json.Marshal(r.Parties)
	if err != nil {
		return err
	}
	var attName, attMime *string
	var attSize *int64
	var attUploaded *time.Time
	if a := r.Attachment; a != nil {
		attName, attMime, attSize, attUploaded = &a.Name, &a.MIMEType, &a.Size, &a.UploadedAt
	}

	return pgx.BeginFunc(ctx, sp.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO negotiations (`+negotiationColumns+`, buyer_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 1, $18)
			ON CONFLICT (id) DO UPDATE SET
				category = excluded.category, external_id = excluded.external_id,
				state = excluded.state, description = excluded.description,
				product_id = excluded.product_id, parties = excluded.parties,
				requested_date = excluded.requested_date, expected_date = excluded.expected_date,
				fulfillment_start = excluded.fulfillment_start, fulfillment_end = excluded.fulfillment_end,
				attachment_name = excluded.attachment_name, attachment_mime = excluded.attachment_mime,
				attachment_size = excluded.attachment_size, attachment_uploaded_at = excluded.attachment_uploaded_at,
				updated_at = excluded.updated_at, buyer_id = excluded.buyer_id,
				version = negotiations.version + 1`,
			r.ID, r.Category, r.ExternalID, r.State, r.Description, r.ProductID, parties,
			nullTime(r.Requested), nullTime(r.Expected), nullTime(r.FulfillmentStart), nullTime(r.FulfillmentEnd),
			attName, attMime, attSize, attUploaded,
			r.Created, r.Updated, negotiation.BuyerID(),
		)
		if err != nil {
			return fmt.Errorf("saving negotiation %s: %w", r.ID, err)
		}
		if _, err := tx.Exec(ctx, "DELETE FROM notes WHERE negotiation_id = $1", r.ID); err != nil {
			return err
		}
		for _, note := range r.Notes {
			_, err := tx.Exec(ctx,
				`INSERT INTO notes (id, negotiation_id, author_id, body, created_at) VALUES ($1, $2, $3, $4, $5)`,
				note.ID, r.ID, note.AuthorID, note.Text, note.Date)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// mutate runs the write, maps a write that touched no row to NotFound, or to whatever
// onMiss returns for an existing row, then loads the result in the same transaction.
func (sp *StorageProvider) mutate(
	ctx context.Context,
	id string,
	write func(tx pgx.Tx) (pgconn.CommandTag, error),
	onMiss func(tx pgx.Tx) error,
) (*quote.Negotiation, error) {
	var n *quote.Negotiation
	err := pgx.BeginFunc(ctx, sp.pool, func(tx pgx.Tx) error {
		tag, err := write(tx)
		if err != nil {
			return fmt.Errorf("updating negotiation %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			if onMiss == nil {
				return quote.NotFound(id)
			}
			if err := onMiss(tx); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return quote.NotFound(id)
				}
				return err
			}
		}
		n, err = load(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func load(ctx context.Context, q querier, id string) (*quote.Negotiation, error) {
	r, err := scanRecord(q.QueryRow(ctx,
		"SELECT "+negotiationColumns+" FROM negotiations WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, quote.NotFound(id)
		}
		return nil, err
	}
	if r.Notes, err = loadNotes(ctx, q, id); err != nil {
		return nil, err
	}
	return quote.FromRecord(r, true), nil
}

func loadNotes(ctx context.Context, q querier, id string) ([]quote.Note, error) {
	rows, err := q.Query(ctx,
		"SELECT id, author_id, body, created_at FROM notes WHERE negotiation_id = $1 ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("loading notes of %s: %w", id, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (quote.Note, error) {
		var note quote.Note
		err := row.Scan(&note.ID, &note.AuthorID, &note.Text, &note.Date)
		note.Date = note.Date.UTC()
		return note, err
	})
}

func scanRecord(row pgx.Row) (quote.Record, error) {
	var r quote.Record
	var parties []byte
	var requested, expected, start, end, attUploaded *time.Time
	var attName, attMime *string
	var attSize *int64
	err := row.Scan(
		&r.ID, &r.Category, &r.ExternalID, &r.State, &r.Description, &r.ProductID, &parties,
		&requested, &expected, &start, &end,
		&attName, &attMime, &attSize, &attUploaded,
		&r.Created, &r.Updated, &r.Version,
	)
	if err != nil {
		return quote.Record{}, err
	}
	if err := json.Unmarshal(parties, &r.Parties); err != nil {
		return quote.Record{}, fmt.Errorf("decoding parties of %s: %w", r.ID, err)
	}
	r.Requested = utc(requested)
	r.Expected = utc(expected)
	r.FulfillmentStart = utc(start)
	r.FulfillmentEnd = utc(end)
	r.Created = r.Created.UTC()
	r.Updated = r.Updated.UTC()
	if attName != nil {
		a := quote.Attachment{Name: *attName, Ref: "attachment-" + r.ID, UploadedAt: utc(attUploaded)}
		if attMime != nil {
			a.MIMEType = *attMime
		}
		if attSize != nil {
			a.Size = *attSize
		}
		r.Attachment = &a
	}
	return r, nil
}

func utc(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
