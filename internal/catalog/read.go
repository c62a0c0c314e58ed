package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/roach88/custodian/internal/record"
)

// FetchAll returns every record of kind, newest first. Ties on creation
// time are ordered by id. Returns an empty slice (not nil) when there are
// none.
func (c *Catalog) FetchAll(ctx context.Context, kind record.Kind) ([]record.Record, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	spec, err := specFor(kind)
	if err != nil {
		return nil, err
	}

	stmt, err := c.ro.PreparexContext(ctx, spec.selectSQL)
	if err != nil {
		return nil, newError(CodePrepareFailed, "fetch all", err)
	}
	defer closeQuietly(stmt)

	var rows []row
	if err := stmt.SelectContext(ctx, &rows); err != nil {
		return nil, newError(CodeExecuteFailed, "fetch all", err)
	}

	out := make([]record.Record, 0, len(rows))
	for _, in := range rows {
		r, err := decodeRow(kind, in)
		if err != nil {
			return nil, newError(CodeExecuteFailed, "fetch all", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Fetch returns one record, or ErrNotFound.
func (c *Catalog) Fetch(ctx context.Context, kind record.Kind, id uuid.UUID) (record.Record, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	spec, err := specFor(kind)
	if err != nil {
		return nil, err
	}
	in, err := c.getRow(ctx, c.ro, spec, id.String())
	if err != nil {
		return nil, err
	}
	r, err := decodeRow(kind, in)
	if err != nil {
		return nil, newError(CodeExecuteFailed, "fetch", err)
	}
	return r, nil
}

// Find looks id up in every kind table.
func (c *Catalog) Find(ctx context.Context, id uuid.UUID) (record.Record, error) {
	for _, k := range record.Kinds() {
		r, err := c.Fetch(ctx, k, id)
		if err == nil {
			return r, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
	}
	return nil, notFound(id)
}

// Pending returns the records of kind whose most recent custody event is
// not "synced", newest first.
func (c *Catalog) Pending(ctx context.Context, kind record.Kind) ([]record.Record, error) {
	all, err := c.FetchAll(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]record.Record, 0, len(all))
	for _, r := range all {
		if record.PendingSync(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Count returns the number of stored records of kind.
func (c *Catalog) Count(ctx context.Context, kind record.Kind) (int, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	spec, err := specFor(kind)
	if err != nil {
		return 0, err
	}
	var n int
	if err := c.ro.GetContext(ctx, &n, spec.countSQL); err != nil {
		return 0, newError(CodeExecuteFailed, "count", err)
	}
	return n, nil
}
