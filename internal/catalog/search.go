// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/workflow-miner/pkg/types"
)

// Query holds search parameters. Zero fields do not filter.
type Query struct {
	// Text is matched as a substring of the title, abstract and full text.
	Text string

	// UntargetedOnly keeps papers whose workflow or analysis reports an
	// untargeted metabolomics workflow.
	UntargetedOnly bool

	// Platform is matched as a substring of the main analytical platform.
	Platform string

	// MinCompleteness keeps analyses rated at least this value.
	MinCompleteness int

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Record is everything the catalog holds about one paper.
type Record struct {
	Filename string                  `json:"filename" yaml:"filename"`
	Title    string                  `json:"title" yaml:"title"`
	Authors  string                  `json:"authors,omitempty" yaml:"authors,omitempty"`
	Abstract string                  `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Workflow *types.Workflow         `json:"workflow,omitempty" yaml:"workflow,omitempty"`
	Analysis *types.WorkflowAnalysis `json:"analysis,omitempty" yaml:"analysis,omitempty"`
}

// Search returns matching records ordered by filename.
func (s *Store) Search(ctx context.Context, q Query) ([]Record, error) {
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT f.filename, COALESCE(p.title, w.title, ''), COALESCE(p.authors, ''),
			COALESCE(p.abstract, ''), w.workflow_json, a.analysis_json
		FROM (SELECT filename FROM papers
			UNION SELECT filename FROM workflows
			UNION SELECT filename FROM analyses) f
		LEFT JOIN papers p ON p.filename = f.filename
		LEFT JOIN workflows w ON w.filename = f.filename
		LEFT JOIN analyses a ON a.filename = f.filename
		WHERE 1=1`)

	if q.Text != "" {
		pattern := "%" + escapeLike(q.Text) + "%"
		qb.WriteString(` AND (COALESCE(p.title, w.title, '') LIKE ? ESCAPE '\'
			OR COALESCE(p.abstract, '') LIKE ? ESCAPE '\'
			OR COALESCE(p.full_text, '') LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	if q.UntargetedOnly {
		qb.WriteString(` AND COALESCE(a.has_untargeted, w.has_untargeted, 0) = 1`)
	}
	if q.Platform != "" {
		qb.WriteString(` AND a.main_analytical_platform LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(q.Platform)+"%")
	}
	if q.MinCompleteness > 0 {
		qb.WriteString(` AND a.completeness >= ?`)
		args = append(args, q.MinCompleteness)
	}

	qb.WriteString(` ORDER BY f.filename LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		var (
			r            Record
			workflowJSON sql.NullString
			analysisJSON sql.NullString
		)
		if err := rows.Scan(&r.Filename, &r.Title, &r.Authors, &r.Abstract, &workflowJSON, &analysisJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if workflowJSON.Valid {
			var wf types.Workflow
			if err := json.Unmarshal([]byte(workflowJSON.String), &wf); err != nil {
				return nil, fmt.Errorf("decoding workflow of %s: %w", r.Filename, err)
			}
			r.Workflow = &wf
		}
		if analysisJSON.Valid {
			var a types.WorkflowAnalysis
			if err := json.Unmarshal([]byte(analysisJSON.String), &a); err != nil {
				return nil, fmt.Errorf("decoding analysis of %s: %w", r.Filename, err)
			}
			r.Analysis = &a
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Export formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

const exportLimit = 100000

// Export writes every record matching q to w as YAML or JSON.
func (s *Store) Export(ctx context.Context, format string, q Query, w io.Writer) error {
	q.MaxResults = exportLimit
	records, err := s.Search(ctx, q)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}
	if records == nil {
		records = []Record{}
	}

	switch strings.ToLower(format) {
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported export format %q (use yaml or json)", format)
	}
}
