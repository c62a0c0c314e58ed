package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/roach88/custodian/internal/custody"
	"github.com/roach88/custodian/internal/integrity"
	"github.com/roach88/custodian/internal/record"
)

// Save persists r. Saving a record whose id is already stored is a no-op
// when every write-once column matches and ErrIDConflict otherwise; the
// stored custody chain is never touched by Save.
func (c *Catalog) Save(ctx context.Context, r record.Record) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	spec, err := specFor(r.Kind())
	if err != nil {
		return err
	}
	if err := validateRecord(r); err != nil {
		return err
	}
	in, err := encodeRow(r)
	if err != nil {
		return newError(CodeExecuteFailed, "save", err)
	}

	unlock := c.locks.lock(r.Kind(), record.ID(r))
	defer unlock()

	stmt, err := c.db.PrepareNamedContext(ctx, spec.insertSQL)
	if err != nil {
		return newError(CodePrepareFailed, "save", err)
	}
	defer closeQuietly(stmt)

	res, err := stmt.ExecContext(ctx, in)
	if err != nil {
		return newError(CodeExecuteFailed, "save", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return newError(CodeExecuteFailed, "save", err)
	}
	if n == 1 {
		return nil
	}

	stored, err := c.getRow(ctx, c.db, spec, in.ID)
	if err != nil {
		return err
	}
	if !stored.sameEvidence(in) {
		return fmt.Errorf("%w: %s %s", ErrIDConflict, r.Kind(), in.ID)
	}
	return nil
}

// ExtendCustody replaces the stored chain of kind/id with the chain fn
// returns. The new chain must keep every stored event unchanged, add at
// least one event and satisfy custody.Validate. fn runs while the id is
// locked, so it sees the latest stored chain.
func (c *Catalog) ExtendCustody(ctx context.Context, kind record.Kind, id uuid.UUID, fn func(record.Record) (custody.Chain, error)) (record.Record, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	spec, err := specFor(kind)
	if err != nil {
		return nil, err
	}

	unlock := c.locks.lock(kind, id)
	defer unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, newError(CodeExecuteFailed, "extend custody", err)
	}
	defer tx.Rollback()

	stored, err := c.getRow(ctx, tx, spec, id.String())
	if err != nil {
		return nil, err
	}
	current, err := decodeRow(kind, stored)
	if err != nil {
		return nil, newError(CodeExecuteFailed, "extend custody", err)
	}

	old := current.Base().Custody
	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if len(next) <= len(old) || !next.HasPrefix(old) {
		return nil, fmt.Errorf("%w: %s %s", ErrAppendOnly, kind, id)
	}
	if err := custody.Validate(next); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	updated := record.WithCustody(current, next)
	out, err := encodeRow(updated)
	if err != nil {
		return nil, newError(CodeExecuteFailed, "extend custody", err)
	}

	stmt, err := tx.PrepareNamedContext(ctx, spec.updateSQL)
	if err != nil {
		return nil, newError(CodePrepareFailed, "extend custody", err)
	}
	defer closeQuietly(stmt)

	if _, err := stmt.ExecContext(ctx, out); err != nil {
		return nil, newError(CodeExecuteFailed, "extend custody", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, newError(CodeExecuteFailed, "extend custody", err)
	}
	return updated, nil
}

// AppendCustody records action against the stored record kind/id using
// ledger, and returns the updated record.
func (c *Catalog) AppendCustody(ctx context.Context, kind record.Kind, id uuid.UUID, ledger *custody.Ledger, action custody.Action) (record.Record, error) {
	return c.ExtendCustody(ctx, kind, id, func(r record.Record) (custody.Chain, error) {
		return ledger.Append(ctx, r.Base().Custody, action)
	})
}

func validateRecord(r record.Record) error {
	h := r.Base()
	if h.ID == uuid.Nil {
		return fmt.Errorf("%w: nil id", ErrInvalidRecord)
	}
	if h.Checksum != "" && !integrity.IsChecksum(h.Checksum) {
		return fmt.Errorf("%w: checksum %q is not a lowercase sha-256 hex digest", ErrInvalidRecord, h.Checksum)
	}
	if h.FileSize < 0 {
		return fmt.Errorf("%w: negative file size", ErrInvalidRecord)
	}
	if err := custody.Validate(h.Custody); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return nil
}

// getRow loads one row through q, which is the writer, a transaction or the
// reader pool.
func (c *Catalog) getRow(ctx context.Context, q sqlx.QueryerContext, spec *tableSpec, id string) (row, error) {
	var out row
	err := sqlx.GetContext(ctx, q, &out, spec.byIDSQL, id)
	if errors.Is(err, sql.ErrNoRows) {
		return row{}, fmt.Errorf("%w: %s %s", ErrNotFound, spec.kind, id)
	}
	if err != nil {
		return row{}, newError(CodeExecuteFailed, "get", err)
	}
	return out, nil
}
