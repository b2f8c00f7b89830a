// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the workflow-miner pipeline:
// extracted paper content, metabolomics workflows, workflow analyses, and the
// per-stage configuration records.
package types

// PaperContent holds the structured content extracted from one PDF. Multi-valued
// fields are flattened the way the CSV output expects them: authors joined
// with "; ", body divisions and captions joined with a blank line.
type PaperContent struct {
	// Filename is the PDF base name (e.g. "smith2021.pdf").
	Filename string `json:"filename" yaml:"filename"`

	// Title is the paper title, or the PDF stem when none was found.
	Title string `json:"title" yaml:"title"`

	// Authors lists the authors in document order, separated by "; ".
	Authors string `json:"authors" yaml:"authors"`

	// Abstract is the abstract text.
	Abstract string `json:"abstract" yaml:"abstract"`

	// FullText is the body text, one division per paragraph.
	FullText string `json:"full_text" yaml:"full_text"`

	// FigureCaptions holds every non-table figure caption.
	FigureCaptions string `json:"figure_captions" yaml:"figure_captions"`

	// TableCaptions holds every table caption.
	TableCaptions string `json:"table_captions" yaml:"table_captions"`
}

// Failure records a paper that could not be processed by a stage.
type Failure struct {
	Filename string `json:"filename" yaml:"filename"`
	Error    string `json:"error" yaml:"error"`
}

// PaperWorkflow is a paper's extracted content combined with the serialized
// workflow extracted from its full text.
type PaperWorkflow struct {
	PaperContent `yaml:",inline"`

	// WorkflowJSON is the Workflow encoded as JSON.
	WorkflowJSON string `json:"workflow_json" yaml:"workflow_json"`
}

// Names of the CSV columns written for extracted content, in output order.
var ContentColumns = []string{
	"filename",
	"title",
	"authors",
	"abstract",
	"full_text",
	"figure_captions",
	"table_captions",
}

// Row returns the content fields in ContentColumns order.
func (p PaperContent) Row() []string {
	return []string{
		p.Filename,
		p.Title,
		p.Authors,
		p.Abstract,
		p.FullText,
		p.FigureCaptions,
		p.TableCaptions,
	}
}

// ContentFromRecord builds a PaperContent from a CSV record keyed by column name.
func ContentFromRecord(rec map[string]string) PaperContent {
	return PaperContent{
		Filename:       rec["filename"],
		Title:          rec["title"],
		Authors:        rec["authors"],
		Abstract:       rec["abstract"],
		FullText:       rec["full_text"],
		FigureCaptions: rec["figure_captions"],
		TableCaptions:  rec["table_captions"],
	}
}
