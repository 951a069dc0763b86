package app

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteRunStore struct {
	Root   string
	dbPath string

	mu   sync.Mutex
	db   *sql.DB
	once sync.Once
	err  error
}

func NewSQLiteRunStore(root string) (*SQLiteRunStore, error) {
	if strings.TrimSpace(root) == "" {
		root = DefaultRunsRoot()
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	st := &SQLiteRunStore{
		Root:   root,
		dbPath: filepath.Join(root, "deep-research.db"),
	}
	// Initialize eagerly so callers fail fast.
	if err := st.init(); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *SQLiteRunStore) init() error {
	s.once.Do(func() {
		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			s.err = err
			return
		}
		// Keep sqlite responsive under contention.
		_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
		_, _ = db.Exec("PRAGMA journal_mode = WAL;")
		_, _ = db.Exec("PRAGMA synchronous = NORMAL;")

		schema := []string{
			`CREATE TABLE IF NOT EXISTS runs (
				id TEXT PRIMARY KEY,
				topic TEXT NOT NULL,
				goal TEXT,
				status TEXT NOT NULL,
				attempt INTEGER NOT NULL,
				clarify_token TEXT,
				root_token TEXT,
				questions TEXT,
				answers TEXT,
				queries TEXT,
				collected TEXT,
				report TEXT,
				created_at_ns INTEGER NOT NULL,
				updated_at_ns INTEGER NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_runs_updated ON runs(updated_at_ns);`,
			`CREATE TABLE IF NOT EXISTS artifacts (
				run_id TEXT NOT NULL,
				attempt INTEGER NOT NULL,
				position INTEGER NOT NULL,
				query TEXT NOT NULL,
				reference TEXT NOT NULL,
				created_at_ns INTEGER NOT NULL,
				PRIMARY KEY (run_id, attempt, position)
			);`,
			`CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id, attempt);`,
		}
		for _, stmt := range schema {
			if _, err := db.Exec(stmt); err != nil {
				_ = db.Close()
				s.err = err
				return
			}
		}

		s.db = db
	})
	return s.err
}

func (s *SQLiteRunStore) dbConn() (*sql.DB, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, errors.New("sqlite store unavailable")
	}
	return db, nil
}

func (s *SQLiteRunStore) SaveRun(sess *ResearchSession) error {
	if sess == nil {
		return errors.New("nil session")
	}
	if strings.TrimSpace(sess.ID) == "" {
		return errors.New("missing run id")
	}
	db, err := s.dbConn()
	if err != nil {
		return err
	}

	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	sess.UpdatedAt = time.Now()

	_, err = db.Exec(
		`INSERT INTO runs(id, topic, goal, status, attempt, clarify_token, root_token, questions, answers, queries, collected, report, created_at_ns, updated_at_ns)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			topic=excluded.topic,
			goal=excluded.goal,
			status=excluded.status,
			attempt=excluded.attempt,
			clarify_token=excluded.clarify_token,
			root_token=excluded.root_token,
			questions=excluded.questions,
			answers=excluded.answers,
			queries=excluded.queries,
			collected=excluded.collected,
			report=excluded.report,
			updated_at_ns=excluded.updated_at_ns`,
		sess.ID, sess.Topic, nullIfEmpty(sess.Goal), string(sess.Status), sess.Attempt,
		nullIfEmpty(sess.ClarifyToken), nullIfEmpty(sess.RootToken),
		jsonColumn(sess.Questions), jsonColumn(sess.Answers), jsonColumn(sess.Queries), jsonColumn(sess.Collected),
		nullIfEmpty(sess.Report), sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano(),
	)
	return err
}

func (s *SQLiteRunStore) SaveArtifacts(runID string, attempt int, artifacts []SearchArtifact) error {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return errors.New("missing run id")
	}
	if len(artifacts) == 0 {
		return nil
	}
	db, err := s.dbConn()
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixNano()
	for i, art := range artifacts {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO artifacts(run_id, attempt, position, query, reference, created_at_ns)
			 VALUES(?, ?, ?, ?, ?, ?)`,
			runID, attempt, i, art.Query, art.Reference, now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteRunStore) LoadRun(id string) (*ResearchSession, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("missing run id")
	}
	db, err := s.dbConn()
	if err != nil {
		return nil, err
	}

	var sess ResearchSession
	var goal, clarifyToken, rootToken, questions, answers, queries, collected, report sql.NullString
	var status string
	var createdNS, updatedNS int64
	err = db.QueryRow(
		`SELECT id, topic, goal, status, attempt, clarify_token, root_token, questions, answers, queries, collected, report, created_at_ns, updated_at_ns
		 FROM runs WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.Topic, &goal, &status, &sess.Attempt, &clarifyToken, &rootToken,
		&questions, &answers, &queries, &collected, &report, &createdNS, &updatedNS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	sess.Status = RunStatus(status)
	sess.Goal = goal.String
	sess.ClarifyToken = clarifyToken.String
	sess.RootToken = rootToken.String
	sess.Report = report.String
	sess.CreatedAt = time.Unix(0, createdNS)
	sess.UpdatedAt = time.Unix(0, updatedNS)
	decodeJSONColumn(questions, &sess.Questions)
	decodeJSONColumn(answers, &sess.Answers)
	decodeJSONColumn(queries, &sess.Queries)
	decodeJSONColumn(collected, &sess.Collected)
	return &sess, nil
}

func (s *SQLiteRunStore) ListRuns(limit int) ([]RunSummary, error) {
	db, err := s.dbConn()
	if err != nil {
		return nil, err
	}

	q := `
		SELECT id, topic, goal, status, attempt,
			(SELECT COUNT(1) FROM artifacts a WHERE a.run_id = runs.id) AS artifact_count,
			created_at_ns, updated_at_ns
		FROM runs
		ORDER BY updated_at_ns DESC
	`
	args := []interface{}{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]RunSummary, 0, 16)
	for rows.Next() {
		var sum RunSummary
		var goal sql.NullString
		var status string
		var createdNS, updatedNS int64
		if err := rows.Scan(&sum.ID, &sum.Topic, &goal, &status, &sum.Attempts, &sum.Artifacts, &createdNS, &updatedNS); err != nil {
			continue
		}
		sum.Goal = goal.String
		sum.Status = RunStatus(status)
		sum.CreatedAt = time.Unix(0, createdNS)
		sum.UpdatedAt = time.Unix(0, updatedNS)
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

func (s *SQLiteRunStore) DeleteRun(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("missing run id")
	}
	db, err := s.dbConn()
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM artifacts WHERE run_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	return tx.Commit()
}

func (s *SQLiteRunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func nullIfEmpty(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func jsonColumn(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" || string(data) == "[]" {
		return nil
	}
	return string(data)
}

func decodeJSONColumn(col sql.NullString, dst interface{}) {
	if !col.Valid || strings.TrimSpace(col.String) == "" {
		return
	}
	_ = json.Unmarshal([]byte(col.String), dst)
}
