// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/pdiddy/workflow-miner/internal/grobid"
	"github.com/pdiddy/workflow-miner/pkg/types"
)

// GrobidExtractor extracts content by sending PDFs to a GROBID server and
// parsing the TEI it returns.
type GrobidExtractor struct {
	client *grobid.Client
	log    *slog.Logger
}

// NewGrobidExtractor creates an extractor backed by client. A nil logger
// uses slog.Default().
func NewGrobidExtractor(client *grobid.Client, log *slog.Logger) *GrobidExtractor {
	if log == nil {
		log = slog.Default()
	}
	return &GrobidExtractor{client: client, log: log}
}

// Preflight checks that the GROBID server is alive.
func (g *GrobidExtractor) Preflight(ctx context.Context) error {
	return g.client.IsAlive(ctx)
}

// Extract processes one PDF through GROBID.
func (g *GrobidExtractor) Extract(ctx context.Context, pdfPath string) (types.PaperContent, error) {
	name := filepath.Base(pdfPath)
	start := time.Now()

	content, err := g.extract(ctx, pdfPath, name)
	if err != nil {
		g.log.Error("GROBID failed", "paper", name, "error", err)
		return types.PaperContent{}, err
	}

	elapsed := time.Since(start)
	g.log.Info("Successfully processed with GROBID", "paper", name,
		"seconds", fmt.Sprintf("%.2f", elapsed.Seconds()))
	return content, nil
}

func (g *GrobidExtractor) extract(ctx context.Context, pdfPath, name string) (types.PaperContent, error) {
	tei, err := g.client.ProcessFulltext(ctx, pdfPath)
	if err != nil {
		return types.PaperContent{}, err
	}
	return grobid.ParseTEI(tei, name)
}
