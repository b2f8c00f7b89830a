// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog keeps the outputs of every pipeline stage in one SQLite
// database so papers, their workflows and their analyses can be searched and
// exported together.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/workflow-miner/internal/analysis"
	"github.com/pdiddy/workflow-miner/internal/csvio"
	"github.com/pdiddy/workflow-miner/pkg/types"
)

const (
	dbFile            = "catalog.db"
	defaultMaxResults = 20
)

// Kinds of ingest runs recorded in the runs table.
const (
	KindContent   = "content"
	KindWorkflows = "workflows"
	KindAnalysis  = "analysis"
)

// Store manages the catalog SQLite database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
	now        func() time.Time
}

// Open opens or creates dir/catalog.db and its schema.
func Open(cfg types.CatalogConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{db: db, dir: cfg.Dir, maxResults: maxResults, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			source TEXT NOT NULL,
			ingested_at TEXT NOT NULL,
			records INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS papers (
			filename TEXT PRIMARY KEY,
			title TEXT,
			authors TEXT,
			abstract TEXT,
			full_text TEXT,
			figure_captions TEXT,
			table_captions TEXT,
			run_id TEXT REFERENCES runs(id)
		)`,
		`CREATE TABLE IF NOT EXISTS workflows (
			filename TEXT PRIMARY KEY,
			title TEXT,
			has_untargeted INTEGER NOT NULL,
			num_steps INTEGER NOT NULL,
			workflow_json TEXT NOT NULL,
			run_id TEXT REFERENCES runs(id)
		)`,
		`CREATE TABLE IF NOT EXISTS analyses (
			filename TEXT PRIMARY KEY,
			main_analytical_platform TEXT,
			has_untargeted INTEGER NOT NULL,
			completeness INTEGER NOT NULL,
			analysis_json TEXT NOT NULL,
			run_id TEXT REFERENCES runs(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_untargeted ON workflows(has_untargeted)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_platform ON analyses(main_analytical_platform)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Run describes one ingest.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	Kind       string    `json:"kind" yaml:"kind"`
	Source     string    `json:"source" yaml:"source"`
	IngestedAt time.Time `json:"ingested_at" yaml:"ingested_at"`
	Records    int       `json:"records" yaml:"records"`
}

// IngestContent upserts every paper of a content CSV (as written by the
// extract stage or the workflow stage).
func (s *Store) IngestContent(ctx context.Context, csvPath string) (Run, error) {
	records, err := csvio.Read(csvPath)
	if err != nil {
		return Run{}, err
	}
	return s.ingest(ctx, KindContent, csvPath, len(records), func(tx *sql.Tx, runID string) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO papers (filename, title, authors, abstract, full_text, figure_captions, table_captions, run_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(filename) DO UPDATE SET
				title=excluded.title, authors=excluded.authors, abstract=excluded.abstract,
				full_text=excluded.full_text, figure_captions=excluded.figure_captions,
				table_captions=excluded.table_captions, run_id=excluded.run_id`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			p := types.ContentFromRecord(rec)
			if p.Filename == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx, p.Filename, p.Title, p.Authors, p.Abstract,
				p.FullText, p.FigureCaptions, p.TableCaptions, runID); err != nil {
				return fmt.Errorf("inserting paper %s: %w", p.Filename, err)
			}
		}
		return nil
	})
}

// IngestWorkflows upserts every record of a workflows JSON file.
func (s *Store) IngestWorkflows(ctx context.Context, jsonPath string) (Run, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return Run{}, fmt.Errorf("reading %s: %w", jsonPath, err)
	}
	var records []types.WorkflowRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return Run{}, fmt.Errorf("parsing %s: %w", jsonPath, err)
	}

	return s.ingest(ctx, KindWorkflows, jsonPath, len(records), func(tx *sql.Tx, runID string) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO workflows (filename, title, has_untargeted, num_steps, workflow_json, run_id)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(filename) DO UPDATE SET
				title=excluded.title, has_untargeted=excluded.has_untargeted,
				num_steps=excluded.num_steps, workflow_json=excluded.workflow_json,
				run_id=excluded.run_id`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			if r.Filename == "" {
				continue
			}
			wfJSON, err := json.Marshal(r.Workflow)
			if err != nil {
				return fmt.Errorf("encoding workflow %s: %w", r.Filename, err)
			}
			if _, err := stmt.ExecContext(ctx, r.Filename, r.Title,
				r.Workflow.PaperHasUntargetedMetabolomics, len(r.Workflow.WorkflowSteps),
				string(wfJSON), runID); err != nil {
				return fmt.Errorf("inserting workflow %s: %w", r.Filename, err)
			}
		}
		return nil
	})
}

// IngestAnalysis upserts every row of an analysis CSV.
func (s *Store) IngestAnalysis(ctx context.Context, csvPath string) (Run, error) {
	records, err := csvio.Read(csvPath)
	if err != nil {
		return Run{}, err
	}

	return s.ingest(ctx, KindAnalysis, csvPath, len(records), func(tx *sql.Tx, runID string) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO analyses (filename, main_analytical_platform, has_untargeted, completeness, analysis_json, run_id)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(filename) DO UPDATE SET
				main_analytical_platform=excluded.main_analytical_platform,
				has_untargeted=excluded.has_untargeted, completeness=excluded.completeness,
				analysis_json=excluded.analysis_json, run_id=excluded.run_id`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			a := analysis.FromRecord(rec)
			if a.Filename == "" {
				continue
			}
			aJSON, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("encoding analysis %s: %w", a.Filename, err)
			}
			if _, err := stmt.ExecContext(ctx, a.Filename, a.MainAnalyticalPlatform,
				a.HasUntargetedMetabolomics, a.WorkflowCompleteness, string(aJSON), runID); err != nil {
				return fmt.Errorf("inserting analysis %s: %w", a.Filename, err)
			}
		}
		return nil
	})
}

// ingest records a run and applies fill in one transaction.
func (s *Store) ingest(ctx context.Context, kind, source string, n int, fill func(*sql.Tx, string) error) (Run, error) {
	run := Run{
		ID:         uuid.NewString(),
		Kind:       kind,
		Source:     source,
		IngestedAt: s.now().UTC(),
		Records:    n,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, kind, source, ingested_at, records) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Source, run.IngestedAt.Format(time.RFC3339Nano), run.Records,
	); err != nil {
		return Run{}, fmt.Errorf("recording run: %w", err)
	}
	if err := fill(tx, run.ID); err != nil {
		return Run{}, err
	}
	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("committing %s ingest: %w", kind, err)
	}
	return run, nil
}

// Runs lists every ingest, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, source, ingested_at, records FROM runs ORDER BY ingested_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var at string
		if err := rows.Scan(&r.ID, &r.Kind, &r.Source, &at, &r.Records); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.IngestedAt, _ = time.Parse(time.RFC3339Nano, at)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// PrintRun writes a one-line description of run.
func PrintRun(w io.Writer, run Run) {
	fmt.Fprintf(w, "ingested %d %s records from %s (run %s)\n", run.Records, run.Kind, run.Source, run.ID)
}
