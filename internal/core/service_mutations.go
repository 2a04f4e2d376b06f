package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/JonMunkholm/datastore/internal/datastore"
	"github.com/JonMunkholm/datastore/internal/logging"
)

// CellEdit is one value change addressed by column name.
type CellEdit struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  any    `json:"value"`
}

// SetValue converts value for the column's type and writes it to the cell.
func (s *Service) SetValue(ctx context.Context, id string, edit CellEdit) error {
	sess, err := s.lock(id)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()

	if err := checkRow(sess.store, edit.Row); err != nil {
		return err
	}
	if err := setCell(sess.store, edit.Row, edit.Column, edit.Value); err != nil {
		return err
	}

	logging.ForSession(ctx, id, sess.table).Debug("cell edited",
		"row", edit.Row,
		"column", edit.Column,
	)
	return nil
}

// SetValues applies several edits. Edits before a failing one stay applied.
func (s *Service) SetValues(ctx context.Context, id string, edits []CellEdit) (int, error) {
	sess, err := s.lock(id)
	if err != nil {
		return 0, err
	}
	defer sess.mu.Unlock()

	for i, edit := range edits {
		if err := checkRow(sess.store, edit.Row); err != nil {
			return i, err
		}
		if err := setCell(sess.store, edit.Row, edit.Column, edit.Value); err != nil {
			return i, fmt.Errorf("edit %d: %w", i, err)
		}
	}

	logging.ForSession(ctx, id, sess.table).Debug("cells edited", "count", len(edits))
	return len(edits), nil
}

// InsertRow adds a new row at position at (a negative position appends)
// and fills it from values. It returns the row's index.
func (s *Service) InsertRow(ctx context.Context, id string, at int, values map[string]any) (int, error) {
	sess, err := s.lock(id)
	if err != nil {
		return 0, err
	}
	defer sess.mu.Unlock()

	ds := sess.store
	if at > ds.RowCount() {
		return 0, fmt.Errorf("%w: %d", ErrRowOutOfRange, at)
	}

	// Validate before touching the store so a bad value leaves no empty row.
	converted := make(map[string]any, len(values))
	info := ds.Info()
	for name, raw := range values {
		col := info.ColumnIndex(name)
		if col < 0 {
			return 0, fmt.Errorf("column not found: %s", name)
		}
		v, err := ConvertValue(info.Columns[col], raw)
		if err != nil {
			return 0, err
		}
		converted[name] = v
	}

	var row int
	if at < 0 {
		row = ds.AddRow()
	} else {
		row = ds.InsertRowAt(at)
	}

	names := make([]string, 0, len(converted))
	for name := range converted {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := ds.SetValueByName(row, name, converted[name]); err != nil {
			ds.DeleteRow(row)
			return 0, err
		}
	}

	logging.ForSession(ctx, id, sess.table).Debug("row inserted", "row", row)
	return row, nil
}

// DeleteRow removes a live row.
func (s *Service) DeleteRow(ctx context.Context, id string, row int) error {
	sess, err := s.lock(id)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()

	if err := checkRow(sess.store, row); err != nil {
		return err
	}
	sess.store.DeleteRow(row)

	logging.ForSession(ctx, id, sess.table).Debug("row deleted", "row", row)
	return nil
}

// Restore reverts every unsaved change in the session.
func (s *Service) Restore(ctx context.Context, id string) (SessionInfo, error) {
	sess, err := s.lock(id)
	if err != nil {
		return SessionInfo{}, err
	}
	defer sess.mu.Unlock()

	sess.store.RestoreOriginalValues()

	logging.ForSession(ctx, id, sess.table).Info("changes restored")
	return sess.info(), nil
}

// Accept marks the current state as saved without writing anything, for
// changes that were applied out of band (for example an exported script).
func (s *Service) Accept(ctx context.Context, id string) (SessionInfo, error) {
	sess, err := s.lock(id)
	if err != nil {
		return SessionInfo{}, err
	}
	defer sess.mu.Unlock()

	sess.store.ResetStatus()

	logging.ForSession(ctx, id, sess.table).Info("changes accepted")
	return sess.info(), nil
}

func checkRow(ds *datastore.DataStore, row int) error {
	if row < 0 || row >= ds.RowCount() {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, row)
	}
	return nil
}

func setCell(ds *datastore.DataStore, row int, column string, raw any) error {
	info := ds.Info()
	col := info.ColumnIndex(column)
	if col < 0 {
		return fmt.Errorf("column not found: %s", column)
	}
	v, err := ConvertValue(info.Columns[col], raw)
	if err != nil {
		return err
	}
	return ds.SetValue(row, col, v)
}
