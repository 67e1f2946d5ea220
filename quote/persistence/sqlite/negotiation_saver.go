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

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

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
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// GetNegotiation returns a read-only negotiation.
func (sp *StorageProvider) GetNegotiation(ctx context.Context, id string) (*quote.Negotiation, error) {
	return load(ctx, sp.db, id)
}

// QueryNegotiations returns the read-only negotiations matching the options.
func (sp *StorageProvider) QueryNegotiations(
	ctx context.Context,
	opts ...persistence.QueryOption,
) ([]*quote.Negotiation, error) {
	filter := persistence.NewFilter(opts...)
	var conds []string
	var args []any
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.ExternalID != "" {
		conds = append(conds, "external_id = ?")
		args = append(args, filter.ExternalID)
	}
	if filter.BuyerID != "" {
		conds = append(conds, "buyer_id = ?")
		args = append(args, filter.BuyerID)
	}
	if filter.State != "" {
		conds = append(conds, "state = ?")
		args = append(args, filter.State)
	}
	query := "SELECT " + negotiationColumns + " FROM negotiations"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, id"

	tx, err := sp.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying negotiations: %w", err)
	}
	var records []quote.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	negotiations := make([]*quote.Negotiation, 0, len(records))
	for _, r := range records {
		if r.Notes, err = loadNotes(ctx, tx, r.ID); err != nil {
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
	return sp.mutate(ctx, id, func(tx *sql.Tx) (sql.Result, error) {
		return tx.ExecContext(ctx,
			`UPDATE negotiations SET state = ?, updated_at = ?, version = version + 1
			 WHERE id = ? AND state = ?`,
			to, now(), id, from)
	}, func(tx *sql.Tx) error {
		var state string
		err := tx.QueryRowContext(ctx, "SELECT state FROM negotiations WHERE id = ?", id).Scan(&state)
		if err != nil {
			return err
		}
		return quote.Conflict(id, fmt.Sprintf("state is %s, expected %s", state, from))
	})
}

// AppendNote appends a note to the negotiation.
func (sp *StorageProvider) AppendNote(ctx context.Context, id string, note quote.Note) (*quote.Negotiation, error) {
	return sp.mutate(ctx, id, func(tx *sql.Tx) (sql.Result, error) {
		res, err := touch(ctx, tx, id)
		if err != nil || !affected(res) {
			return res, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO notes (id, negotiation_id, author_id, body, created_at) VALUES (?, ?, ?, ?, ?)`,
			note.ID, id, note.AuthorID, note.Text, formatTime(note.Date))
		return res, err
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
	return sp.mutate(ctx, id, func(tx *sql.Tx) (sql.Result, error) {
		return tx.ExecContext(ctx,
			`UPDATE negotiations SET `+column+` = ?, updated_at = ?, version = version + 1 WHERE id = ?`,
			nullTime(date), now(), id)
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
	return sp.mutate(ctx, id, func(tx *sql.Tx) (sql.Result, error) {
		res, err := tx.ExecContext(ctx,
			`UPDATE negotiations SET attachment_name = ?, attachment_mime = ?, attachment_size = ?,
			 attachment_uploaded_at = ?, updated_at = ?, version = version + 1 WHERE id = ?`,
			att.Name, att.MIMEType, att.Size, formatTime(att.UploadedAt), now(), id)
		if err != nil || !affected(res) {
			return res, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO attachments (negotiation_id, content) VALUES (?, ?)
			 ON CONFLICT (negotiation_id) DO UPDATE SET content = excluded.content`,
			id, file.Content)
		return res, err
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
	err = sp.db.QueryRowContext(ctx, "SELECT content FROM attachments WHERE negotiation_id = ?", id).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	var attName, attMime, attUploaded any
	var attSize any
	if a := r.Attachment; a != nil {
		attName, attMime, attSize, attUploaded = a.Name, a.MIMEType, a.Size, formatTime(a.UploadedAt)
	}

	tx, err := sp.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO negotiations (`+negotiationColumns+`, buyer_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
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
		r.ID, r.Category, r.ExternalID, r.State, r.Description, r.ProductID, string(parties),
		nullTime(r.Requested), nullTime(r.Expected), nullTime(r.FulfillmentStart), nullTime(r.FulfillmentEnd),
		attName, attMime, attSize, attUploaded,
		formatTime(r.Created), formatTime(r.Updated), negotiation.BuyerID(),
	)
	if err != nil {
		return fmt.Errorf("saving negotiation %s: %w", r.ID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM notes WHERE negotiation_id = ?", r.ID); err != nil {
		return err
	}
	for _, note := range r.Notes {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO notes (id, negotiation_id, author_id, body, created_at) VALUES (?, ?, ?, ?, ?)`,
			note.ID, r.ID, note.AuthorID, note.Text, formatTime(note.Date))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// mutate runs the write, maps a write that touched no row to NotFound, or to whatever
// onMiss returns for an existing row, then loads the result in the same transaction.
func (sp *StorageProvider) mutate(
	ctx context.Context,
	id string,
	write func(tx *sql.Tx) (sql.Result, error),
	onMiss func(tx *sql.Tx) error,
) (*quote.Negotiation, error) {
	tx, err := sp.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := write(tx)
	if err != nil {
		return nil, fmt.Errorf("updating negotiation %s: %w", id, err)
	}
	if !affected(res) {
		if onMiss == nil {
			return nil, quote.NotFound(id)
		}
		if err := onMiss(tx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, quote.NotFound(id)
			}
			return nil, err
		}
	}
	n, err := load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return n, nil
}

func touch(ctx context.Context, tx *sql.Tx, id string) (sql.Result, error) {
	return tx.ExecContext(ctx,
		"UPDATE negotiations SET updated_at = ?, version = version + 1 WHERE id = ?", now(), id)
}

func affected(res sql.Result) bool {
	if res == nil {
		return false
	}
	n, err := res.RowsAffected()
	return err == nil && n > 0
}

func load(ctx context.Context, q querier, id string) (*quote.Negotiation, error) {
	r, err := scanRecord(q.QueryRowContext(ctx,
		"SELECT "+negotiationColumns+" FROM negotiations WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	rows, err := q.QueryContext(ctx,
		"SELECT id, author_id, body, created_at FROM notes WHERE negotiation_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("loading notes of %s: %w", id, err)
	}
	defer rows.Close()
	var notes []quote.Note
	for rows.Next() {
		var note quote.Note
		var created string
		if err := rows.Scan(&note.ID, &note.AuthorID, &note.Text, &created); err != nil {
			return nil, err
		}
		if note.Date, err = parseTime(created); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func scanRecord(s scanner) (quote.Record, error) {
	var r quote.Record
	var parties, created, updated string
	var requested, expected, start, end sql.NullString
	var attName, attMime, attUploaded sql.NullString
	var attSize sql.NullInt64
	err := s.Scan(
		&r.ID, &r.Category, &r.ExternalID, &r.State, &r.Description, &r.ProductID, &parties,
		&requested, &expected, &start, &end,
		&attName, &attMime, &attSize, &attUploaded,
		&created, &updated, &r.Version,
	)
	if err != nil {
		return quote.Record{}, err
	}
	if err := json.Unmarshal([]byte(parties), &r.Parties); err != nil {
		return quote.Record{}, fmt.Errorf("decoding parties of %s: %w", r.ID, err)
	}
	for _, d := range []struct {
		src sql.NullString
		dst *time.Time
	}{
		{requested, &r.Requested},
		{expected, &r.Expected},
		{start, &r.FulfillmentStart},
		{end, &r.FulfillmentEnd},
	} {
		if !d.src.Valid {
			continue
		}
		if *d.dst, err = parseTime(d.src.String); err != nil {
			return quote.Record{}, err
		}
	}
	if attName.Valid {
		a := quote.Attachment{
			Name:     attName.String,
			MIMEType: attMime.String,
			Size:     attSize.Int64,
			Ref:      "attachment-" + r.ID,
		}
		if attUploaded.Valid {
			if a.UploadedAt, err = parseTime(attUploaded.String); err != nil {
				return quote.Record{}, err
			}
		}
		r.Attachment = &a
	}
	if r.Created, err = parseTime(created); err != nil {
		return quote.Record{}, err
	}
	if r.Updated, err = parseTime(updated); err != nil {
		return quote.Record{}, err
	}
	return r, nil
}

func now() string { return formatTime(time.Now()) }

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t, nil
}
