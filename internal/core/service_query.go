package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Rows returns up to limit live rows starting at offset. A limit <= 0
// returns every row from offset on.
func (s *Service) Rows(id string, offset, limit int) (Page, error) {
	sess, err := s.lock(id)
	if err != nil {
		return Page{}, err
	}
	defer sess.mu.Unlock()

	ds := sess.store
	total := ds.RowCount()
	if offset < 0 {
		offset = 0
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	page := Page{Offset: offset, Total: total, Pending: pendingView(ds)}
	for i := offset; i < end; i++ {
		page.Rows = append(page.Rows, RowView{
			Index:  i,
			Status: ds.Status(i).String(),
			Values: ds.RowValues(i),
		})
	}
	return page, nil
}

// Statements returns the statements the next Apply would run.
func (s *Service) Statements(id string) ([]StatementView, error) {
	sess, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	stmts, err := sess.store.Statements()
	if err != nil {
		return nil, err
	}
	return statementViews(stmts), nil
}

// Script renders the pending changes as a SQL script with inline literals.
func (s *Service) Script(id string) (string, error) {
	sess, err := s.lock(id)
	if err != nil {
		return "", err
	}
	defer sess.mu.Unlock()

	return sess.store.Script()
}

// ExportScript writes the session's script to the configured sink and
// returns its location. An empty name is derived from the table and time.
func (s *Service) ExportScript(ctx context.Context, id, name string) (string, error) {
	if s.sink == nil {
		return "", errors.New("script export is not configured")
	}

	sess, err := s.lock(id)
	if err != nil {
		return "", err
	}
	script, err := sess.store.Script()
	table := sess.table
	sess.mu.Unlock()
	if err != nil {
		return "", err
	}

	if name == "" {
		name = fmt.Sprintf("%s-%s.sql", table, time.Now().UTC().Format("20060102T150405Z"))
	}

	loc, err := s.sink.Write(ctx, name, strings.NewReader(script), int64(len(script)))
	if err != nil {
		return "", fmt.Errorf("export script: %w", err)
	}
	return loc, nil
}
