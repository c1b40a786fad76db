package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/roach88/calcsync/internal/ir"
	"github.com/roach88/calcsync/internal/remote"
)

// GetOrCreateContainer returns the oldest container, creating one when the
// store has none.
func (s *Store) GetOrCreateContainer(ctx context.Context) (string, error) {
	var id string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM containers ORDER BY seq ASC, id COLLATE BINARY ASC LIMIT 1`).Scan(&id)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read container: %w", err)
		}
		id, err = s.createContainer(ctx, tx)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	return id, nil
}

// CreateContainer always creates a new container.
func (s *Store) CreateContainer(ctx context.Context) (string, error) {
	var id string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.createContainer(ctx, tx)
		return err
	})
	return id, err
}

func (s *Store) createContainer(ctx context.Context, q queryer) (string, error) {
	seq, err := nextSeq(ctx, q, "containers")
	if err != nil {
		return "", err
	}
	id := s.ids.Generate()
	if _, err := q.ExecContext(ctx, `INSERT INTO containers (id, seq) VALUES (?, ?)`, id, seq); err != nil {
		return "", fmt.Errorf("insert container: %w", err)
	}
	return id, nil
}

func containerExists(ctx context.Context, q queryer, id string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM containers WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("read container: %w", err)
	}
	return n > 0, nil
}

// CreateItem stores an item for the single data item key identifies. The
// key may omit drill paths that have only one value left.
func (s *Store) CreateItem(ctx context.Context, containerID, category string, key []remote.Pair, values map[string]string, opts remote.ItemOptions) (string, error) {
	valuesJSON, err := marshalValues(values)
	if err != nil {
		return "", err
	}
	metaJSON, err := marshalValues(opts.Metadata)
	if err != nil {
		return "", err
	}

	var id string
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := containerExists(ctx, tx, containerID)
		if err != nil {
			return err
		}
		if !ok {
			return remote.NotFoundf("container %s", containerID)
		}
		drills, err := s.categoryDrills(ctx, tx, category)
		if err != nil {
			return err
		}
		for _, p := range key {
			if !slices.Contains(drills, p.Path) {
				return remote.Unavailablef("category %s has no drill path %q", category, p.Path)
			}
		}

		matches, err := s.matchDataItems(ctx, tx, category, key)
		if err != nil {
			return err
		}
		switch len(matches) {
		case 0:
			return remote.Unavailablef("no catalog entry in %s matches %s", category, keyString(key))
		case 1:
		default:
			return remote.Unavailablef("%s matches %d catalog entries in %s", keyString(key), len(matches), category)
		}

		seq, err := nextSeq(ctx, tx, "items")
		if err != nil {
			return err
		}
		id = s.ids.Generate()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO items (id, container_id, data_item_id, category, name, item_values, metadata, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, containerID, matches[0], category, opts.Name, valuesJSON, metaJSON, seq)
		if err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", classify(err)
	}
	return id, nil
}

// GetItem returns the item with its key in drill order and its outputs
// computed from the current values.
func (s *Store) GetItem(ctx context.Context, ref remote.ItemRef) (remote.Item, error) {
	var (
		item       remote.Item
		dataItemID string
		valuesJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT data_item_id, category, name, item_values
		FROM items WHERE id = ? AND container_id = ?
	`, ref.ID, ref.ContainerID).Scan(&dataItemID, &item.Category, &item.Name, &valuesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return remote.Item{}, remote.NotFoundf("item %s", ref.Path())
	}
	if err != nil {
		return remote.Item{}, classify(fmt.Errorf("read item: %w", err))
	}
	item.Ref = ref
	if item.Values, err = unmarshalValues(valuesJSON); err != nil {
		return remote.Item{}, err
	}
	if item.Key, err = s.dataItemKey(ctx, item.Category, dataItemID); err != nil {
		return remote.Item{}, classify(err)
	}
	if item.Outputs, err = s.outputs(ctx, dataItemID, item.Values); err != nil {
		return remote.Item{}, classify(err)
	}
	return item, nil
}

func (s *Store) dataItemKey(ctx context.Context, category, dataItemID string) ([]remote.Pair, error) {
	drills, err := s.categoryDrills(ctx, s.db, category)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, value FROM data_item_drills WHERE item_id = ? ORDER BY path COLLATE BINARY ASC`, dataItemID)
	if err != nil {
		return nil, fmt.Errorf("read drill values: %w", err)
	}
	defer rows.Close()

	given := make(map[string]string)
	for rows.Next() {
		var path, value string
		if err := rows.Scan(&path, &value); err != nil {
			return nil, fmt.Errorf("scan drill value: %w", err)
		}
		given[path] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ordered(drills, given), nil
}

func (s *Store) outputs(ctx context.Context, dataItemID string, values map[string]string) ([]remote.Output, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, is_default, factor, multiply_by, unit, per_unit
		FROM data_item_outputs WHERE item_id = ?
		ORDER BY type COLLATE BINARY ASC
	`, dataItemID)
	if err != nil {
		return nil, fmt.Errorf("read outputs: %w", err)
	}
	defer rows.Close()

	outputs := []remote.Output{}
	for rows.Next() {
		var (
			out        remote.Output
			factor     float64
			multiplyBy string
		)
		if err := rows.Scan(&out.Type, &out.Default, &factor, &multiplyBy, &out.Unit, &out.PerUnit); err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		out.Value = computeOutput(factor, multiplyBy, values)
		outputs = append(outputs, out)
	}
	return outputs, rows.Err()
}

// computeOutput multiplies factor by the named value. A missing or
// non-numeric value yields zero.
func computeOutput(factor float64, multiplyBy string, values map[string]string) float64 {
	if multiplyBy == "" {
		return factor
	}
	x, err := strconv.ParseFloat(values[multiplyBy], 64)
	if err != nil {
		return 0
	}
	return factor * x
}

// UpdateItem replaces the item's values. Metadata is replaced when opts
// carries any and the name when it is non-empty.
func (s *Store) UpdateItem(ctx context.Context, ref remote.ItemRef, values map[string]string, opts remote.ItemOptions) error {
	valuesJSON, err := marshalValues(values)
	if err != nil {
		return err
	}
	query := `UPDATE items SET item_values = ?`
	args := []any{valuesJSON}
	if opts.Metadata != nil {
		metaJSON, err := marshalValues(opts.Metadata)
		if err != nil {
			return err
		}
		query += `, metadata = ?`
		args = append(args, metaJSON)
	}
	if opts.Name != "" {
		query += `, name = ?`
		args = append(args, opts.Name)
	}
	query += ` WHERE id = ? AND container_id = ?`
	args = append(args, ref.ID, ref.ContainerID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(fmt.Errorf("update item: %w", err))
	}
	return requireRow(res, ref)
}

// DeleteItem removes the item.
func (s *Store) DeleteItem(ctx context.Context, ref remote.ItemRef) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM items WHERE id = ? AND container_id = ?`, ref.ID, ref.ContainerID)
	if err != nil {
		return classify(fmt.Errorf("delete item: %w", err))
	}
	return requireRow(res, ref)
}

// ItemMetadata returns the metadata stored with the item.
func (s *Store) ItemMetadata(ctx context.Context, ref remote.ItemRef) (map[string]string, error) {
	var metaJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT metadata FROM items WHERE id = ? AND container_id = ?`, ref.ID, ref.ContainerID).Scan(&metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, remote.NotFoundf("item %s", ref.Path())
	}
	if err != nil {
		return nil, classify(fmt.Errorf("read metadata: %w", err))
	}
	return unmarshalValues(metaJSON)
}

// ListItems returns the refs of every item in a container, oldest first.
func (s *Store) ListItems(ctx context.Context, containerID string) ([]remote.ItemRef, error) {
	ok, err := containerExists(ctx, s.db, containerID)
	if err != nil {
		return nil, classify(err)
	}
	if !ok {
		return nil, remote.NotFoundf("container %s", containerID)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM items WHERE container_id = ? ORDER BY seq ASC, id COLLATE BINARY ASC`, containerID)
	if err != nil {
		return nil, classify(fmt.Errorf("list items: %w", err))
	}
	defer rows.Close()

	refs := []remote.ItemRef{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		refs = append(refs, remote.ItemRef{ContainerID: containerID, ID: id})
	}
	return refs, rows.Err()
}

func requireRow(res sql.Result, ref remote.ItemRef) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return remote.NotFoundf("item %s", ref.Path())
	}
	return nil
}

// classify makes every store error one of the two remote error classes.
func classify(err error) error {
	if err == nil || remote.IsNotFound(err) || remote.IsUnavailable(err) {
		return err
	}
	return fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
}

var (
	_ remote.Service        = (*Store)(nil)
	_ remote.MetadataSource = (*Store)(nil)
)

// keyString renders a key for log and error messages.
func keyString(key []ir.Pair) string {
	data, err := ir.MarshalCanonical(encodeKey(key))
	if err != nil {
		return fmt.Sprint(key)
	}
	return string(data)
}

func encodeKey(key []ir.Pair) []any {
	out := make([]any, 0, len(key))
	for _, p := range key {
		out = append(out, []string{p.Path, p.Value})
	}
	return out
}
