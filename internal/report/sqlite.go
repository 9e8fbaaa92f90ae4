// Package report records compression runs into a SQLite database, one row
// per node record plus one summary row per run.
package report

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/treepress/internal/press"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	nodes INTEGER NOT NULL,
	direct INTEGER NOT NULL,
	subtree_refs INTEGER NOT NULL,
	template_refs INTEGER NOT NULL,
	field_maps INTEGER NOT NULL,
	empty_arrays INTEGER NOT NULL,
	templates INTEGER NOT NULL,
	bytes INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
	run_id INTEGER NOT NULL REFERENCES runs(id) DEFERRABLE INITIALLY DEFERRED,
	node INTEGER NOT NULL,
	depth INTEGER NOT NULL,
	type TEXT NOT NULL,
	op TEXT NOT NULL,
	depth_delta INTEGER NOT NULL,
	reverse_index INTEGER NOT NULL,
	benefit INTEGER NOT NULL,
	cuts INTEGER NOT NULL,
	byte_offset INTEGER NOT NULL
);
`

// Writer is a press.Sink backed by SQLite. Inserts are batched into
// transactions.
type Writer struct {
	db        *sql.DB
	tx        *sql.Tx
	stmt      *sql.Stmt
	runID     int64
	batchSize int
	count     int
	mu        sync.Mutex
}

// Open creates (or extends) the report database at path. Foreign keys are
// enforced on every connection, so records of an unknown run fail the
// batch commit.
func Open(path string) (*Writer, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Writer{db: db, batchSize: 10000}, nil
}

// BeginRun starts a new run. Records that follow belong to it until
// FinishRun.
func (w *Writer) BeginRun(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	res, err := w.db.Exec(`INSERT INTO runs (name, nodes, direct, subtree_refs, template_refs, field_maps, empty_arrays, templates, bytes)
		VALUES (?, 0, 0, 0, 0, 0, 0, 0, 0)`, name)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if w.runID, err = res.LastInsertId(); err != nil {
		return err
	}
	return w.beginTx()
}

func (w *Writer) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return err
	}
	w.stmt, err = w.tx.Prepare(`
		INSERT INTO records (run_id, node, depth, type, op, depth_delta, reverse_index, benefit, cuts, byte_offset)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	return err
}

func (w *Writer) commitTx() error {
	if w.tx == nil {
		return nil
	}
	if w.stmt != nil {
		_ = w.stmt.Close()
		w.stmt = nil
	}
	err := w.tx.Commit()
	w.tx = nil
	return err
}

// Record implements press.Sink.
func (w *Writer) Record(ev press.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.tx == nil {
		return fmt.Errorf("report: record outside a run")
	}
	_, err := w.stmt.Exec(w.runID, ev.Number, ev.Depth, ev.Type, ev.Op.String(),
		ev.DepthDelta, ev.RevIndex, ev.Benefit, ev.Cuts, ev.Offset)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	w.count++
	if w.count >= w.batchSize {
		if err := w.commitTx(); err != nil {
			return fmt.Errorf("commit records: %w", err)
		}
		if err := w.beginTx(); err != nil {
			return err
		}
		w.count = 0
	}
	return nil
}

// FinishRun commits pending records and stores the run summary.
func (w *Writer) FinishRun(s press.Stats) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.commitTx(); err != nil {
		return err
	}
	w.count = 0
	_, err := w.db.Exec(`UPDATE runs SET nodes = ?, direct = ?, subtree_refs = ?, template_refs = ?,
		field_maps = ?, empty_arrays = ?, templates = ?, bytes = ? WHERE id = ?`,
		s.Nodes, s.Direct, s.SubtreeRefs, s.TemplateRefs, s.FieldMaps, s.EmptyArrays, s.TemplatesDerived, s.Bytes, w.runID)
	return err
}

// OpCounts returns the number of records per op for a run.
func (w *Writer) OpCounts(runID int64) (map[string]int, error) {
	rows, err := w.db.Query(`SELECT op, COUNT(*) FROM records WHERE run_id = ? GROUP BY op`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make(map[string]int)
	for rows.Next() {
		var (
			op string
			n  int
		)
		if err := rows.Scan(&op, &n); err != nil {
			return nil, err
		}
		out[op] = n
	}
	return out, rows.Err()
}

// RunID is the id of the current (or last) run.
func (w *Writer) RunID() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runID
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.commitTx(); err != nil {
		_ = w.db.Close()
		return err
	}
	if _, err := w.db.Exec(`CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id, node)`); err != nil {
		log.Printf("report: index creation failed: %v", err)
	}
	return w.db.Close()
}

var _ press.Sink = (*Writer)(nil)
