package types

import "time"

// GrobidConfig holds settings for talking to a GROBID server.
type GrobidConfig struct {
	// URL is the base URL of the GROBID service (default "http://localhost:8070").
	URL string `json:"url" yaml:"url"`

	// Timeout bounds a single full-text processing request (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Concurrency is the number of PDFs sent to GROBID at once (default 1).
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// ContainerConfig holds settings for running the GROBID container.
type ContainerConfig struct {
	// Image is the pinned GROBID image (default "grobid/grobid:0.8.0").
	Image string `json:"image" yaml:"image"`

	// Name is the container name used for detached runs (default "grobid").
	Name string `json:"name" yaml:"name"`

	// HostPort is published to the container's 8070 (default 8070).
	HostPort int `json:"host_port" yaml:"host_port"`
}

// AIProvider identifies the Generative AI API.
type AIProvider string

const (
	ProviderOpenAI AIProvider = "openai"
	ProviderClaude AIProvider = "claude"
)

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Provider selects the API: openai or claude.
	Provider AIProvider `json:"provider" yaml:"provider"`

	// Model is the AI model identifier (e.g. "gpt-4o").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of attempts for a failed call (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RetryDelay is the pause between failed attempts (default 5s).
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`
}

// ContentBackend selects how paper content is extracted from PDFs.
type ContentBackend string

const (
	ContentGrobid ContentBackend = "grobid"
	ContentOpenAI ContentBackend = "openai"
)

// OutputConfig names the files a stage writes: OutputDir/OutputName.csv and
// its siblings.
type OutputConfig struct {
	OutputDir  string `json:"output_dir" yaml:"output_dir"`
	OutputName string `json:"output_name" yaml:"output_name"`
}

// ExtractionConfig holds settings for the content extraction stage.
type ExtractionConfig struct {
	OutputConfig `yaml:",inline"`

	// PDFDir holds one subdirectory per paper, each containing its PDF.
	PDFDir string `json:"pdf_dir" yaml:"pdf_dir"`

	// MaxPDFs limits how many PDFs are processed (0 = all).
	MaxPDFs int `json:"max_pdfs" yaml:"max_pdfs"`

	// Backend selects grobid or openai.
	Backend ContentBackend `json:"backend" yaml:"backend"`

	Grobid GrobidConfig `json:"grobid" yaml:"grobid"`
}

// WorkflowConfig holds settings for the workflow extraction stage.
type WorkflowConfig struct {
	ExtractionConfig `yaml:",inline"`
	AIConfig         `yaml:"ai"`

	// InterPaperDelay is the pause between papers (default 1s).
	InterPaperDelay time.Duration `json:"inter_paper_delay" yaml:"inter_paper_delay"`

	// ContentCSV, when set, reads previously extracted content instead of
	// extracting it from PDFs.
	ContentCSV string `json:"content_csv,omitempty" yaml:"content_csv,omitempty"`
}

// AnalysisConfig holds settings for the workflow analysis stage.
type AnalysisConfig struct {
	AIConfig `yaml:"ai"`

	// WorkflowsJSON is the workflows file written by the workflow stage.
	WorkflowsJSON string `json:"workflows_json" yaml:"workflows_json"`

	// OutputCSV is the analysis table path.
	OutputCSV string `json:"output_csv" yaml:"output_csv"`
}

// CatalogConfig holds settings for the SQLite catalog.
type CatalogConfig struct {
	// Dir contains catalog.db.
	Dir string `json:"dir" yaml:"dir"`

	// MaxResults is the default search limit (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}
