package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/datastore/internal/config"
	"github.com/JonMunkholm/datastore/internal/datastore"
	"github.com/JonMunkholm/datastore/internal/export"
	"github.com/JonMunkholm/datastore/internal/logging"
	"github.com/JonMunkholm/datastore/internal/metrics"
	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned for unknown or expired session IDs.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTooManySessions is returned by OpenTable when the session limit is reached.
	ErrTooManySessions = errors.New("too many open sessions")

	// ErrInvalidTableName is returned for empty or malformed table names.
	ErrInvalidTableName = errors.New("invalid table name")

	// ErrInvalidQuery is returned when a custom query is not a SELECT.
	ErrInvalidQuery = errors.New("query must be a select statement")

	// ErrRowOutOfRange is returned for row indexes outside the live set.
	ErrRowOutOfRange = errors.New("row out of range")
)

// tableNameRegex accepts "table" and "schema.table" identifiers.
var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)?$`)

// Service manages row-store sessions over one database.
type Service struct {
	db      Database
	sink    export.Sink
	metrics *metrics.Metrics
	cfg     config.StoreConfig
	limiter *BatchLimiter

	mu       sync.RWMutex
	sessions map[string]*session
}

// session is one row store plus the lock that serializes access to it.
type session struct {
	id     string
	table  string
	opened time.Time
	client Client

	mu      sync.Mutex
	store   *datastore.DataStore
	history []ApplyReport

	lastUsed atomic.Int64 // unix nanoseconds
}

func (s *session) touch() { s.lastUsed.Store(time.Now().UnixNano()) }

func (s *session) idleSince() time.Time { return time.Unix(0, s.lastUsed.Load()) }

// NewService creates a Service. sink and m may be nil: exports then fail and
// metrics are not recorded.
func NewService(db Database, sink export.Sink, m *metrics.Metrics, cfg config.StoreConfig) *Service {
	return &Service{
		db:       db,
		sink:     sink,
		metrics:  m,
		cfg:      cfg,
		limiter:  NewBatchLimiter(cfg.MaxConcurrentApplies, cfg.ApplyWait),
		sessions: make(map[string]*session),
	}
}

// Limiter exposes the batch limiter for monitoring.
func (s *Service) Limiter() *BatchLimiter { return s.limiter }

// OpenTable loads rows into a new session and returns its description.
func (s *Service) OpenTable(ctx context.Context, req OpenRequest) (SessionInfo, error) {
	if !tableNameRegex.MatchString(req.Table) {
		return SessionInfo{}, fmt.Errorf("%w: %q", ErrInvalidTableName, req.Table)
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = "SELECT * FROM " + s.db.Dialect().QuoteTable(req.Table)
	} else if !isSelect(query) {
		return SessionInfo{}, ErrInvalidQuery
	}

	if s.cfg.MaxSessions > 0 && s.SessionCount() >= s.cfg.MaxSessions {
		return SessionInfo{}, ErrTooManySessions
	}

	maxRows := req.MaxRows
	if maxRows <= 0 || (s.cfg.MaxRows > 0 && maxRows > s.cfg.MaxRows) {
		maxRows = s.cfg.MaxRows
	}

	ds, err := s.load(ctx, req.Table, query, maxRows)
	if err != nil {
		return SessionInfo{}, err
	}

	if len(req.KeyColumns) > 0 {
		err = ds.SetPrimaryKeys(req.KeyColumns...)
	} else {
		err = ds.ResolvePrimaryKeys(ctx, s.db)
	}
	// A table without a key still opens; updates and deletes fail later.
	if err != nil && !errors.Is(err, datastore.ErrNoPrimaryKey) {
		return SessionInfo{}, err
	}

	sess := &session{
		id:     uuid.New().String(),
		table:  req.Table,
		opened: time.Now(),
		client: ClientFromContext(ctx),
		store:  ds,
	}
	sess.touch()

	s.mu.Lock()
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		return SessionInfo{}, ErrTooManySessions
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Sessions.Inc()
		s.metrics.RowsLoaded.Add(float64(ds.RowCount()))
	}

	logging.ForSession(ctx, sess.id, sess.table).Info("session opened",
		"rows", ds.RowCount(),
		"read_only", !ds.Info().HasPrimaryKey(),
	)
	return sess.info(), nil
}

// load runs query and fetches up to maxRows rows into a new store.
func (s *Service) load(ctx context.Context, table, query string, maxRows int) (*datastore.DataStore, error) {
	res, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", table, err)
	}
	// Release the cursor before key discovery; SQLite runs on one connection.
	defer res.Close()

	res.Info.UpdateTable = table
	ds := datastore.New(res.Info, s.db.Dialect())
	if _, err := ds.Fetch(ctx, res.Rows, maxRows); err != nil {
		return nil, fmt.Errorf("open %s: %w", table, err)
	}
	return ds, nil
}

func isSelect(query string) bool {
	q := strings.ToLower(query)
	return strings.HasPrefix(q, "select") || strings.HasPrefix(q, "with")
}

// Info returns the description of an open session.
func (s *Service) Info(id string) (SessionInfo, error) {
	sess, err := s.lock(id)
	if err != nil {
		return SessionInfo{}, err
	}
	defer sess.mu.Unlock()
	return sess.info(), nil
}

// Sessions lists open sessions, oldest first.
func (s *Service) Sessions() []SessionInfo {
	s.mu.RLock()
	all := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].opened.Before(all[j].opened) })

	out := make([]SessionInfo, 0, len(all))
	for _, sess := range all {
		sess.mu.Lock()
		out = append(out, sess.info())
		sess.mu.Unlock()
	}
	return out
}

// SessionCount returns the number of open sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close discards a session and its unsaved changes. A batch running on the
// session is asked to stop.
func (s *Service) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.store.Cancel()

	if s.metrics != nil {
		s.metrics.Sessions.Dec()
	}
	logging.ForSession(ctx, id, sess.table).Info("session closed")
	return nil
}

// Shutdown waits for running batches and then closes every session.
func (s *Service) Shutdown(ctx context.Context) error {
	err := s.limiter.WaitForDrain(ctx)
	if err != nil {
		slog.Warn("batches still running at shutdown", "active", s.limiter.ActiveCount())
	}

	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		_ = s.Close(ctx, id)
	}
	return err
}

// get returns a session without locking it.
func (s *Service) get(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// lock returns a session with its mutex held. The caller must unlock it.
func (s *Service) lock(id string) (*session, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	sess.touch()
	return sess, nil
}

// info describes the session. The caller holds sess.mu.
func (sess *session) info() SessionInfo {
	info := sess.store.Info()
	return SessionInfo{
		ID:       sess.id,
		Table:    sess.table,
		Dialect:  sess.store.Dialect().Name,
		Columns:  columnViews(info),
		Rows:     sess.store.RowCount(),
		Pending:  pendingView(sess.store),
		ReadOnly: !info.HasPrimaryKey(),
		Opened:   sess.opened,
		LastUsed: sess.idleSince(),
		Client:   sess.client,
	}
}
