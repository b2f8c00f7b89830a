// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// WorkflowAnalysis is the structured assessment of one extracted workflow.
type WorkflowAnalysis struct {
	Filename string `json:"filename" yaml:"filename"`

	HasUntargetedMetabolomics bool `json:"has_untargeted_metabolomics" yaml:"has_untargeted_metabolomics"`
	UsesMS                    bool `json:"uses_ms" yaml:"uses_ms"`
	UsesLCMS                  bool `json:"uses_lcms" yaml:"uses_lcms"`
	UsesGCMS                  bool `json:"uses_gcms" yaml:"uses_gcms"`
	UsesMSMS                  bool `json:"uses_msms" yaml:"uses_msms"`

	// SampleType describes the analyzed samples (e.g. "mouse liver").
	SampleType string `json:"sample_type" yaml:"sample_type"`

	HasSamplePrep          bool `json:"has_sample_prep" yaml:"has_sample_prep"`
	HasExtraction          bool `json:"has_extraction" yaml:"has_extraction"`
	HasNormalization       bool `json:"has_normalization" yaml:"has_normalization"`
	UsesPCA                bool `json:"uses_pca" yaml:"uses_pca"`
	UsesPLSDA              bool `json:"uses_plsda" yaml:"uses_plsda"`
	HasStatisticalAnalysis bool `json:"has_statistical_analysis" yaml:"has_statistical_analysis"`
	HasPathwayAnalysis     bool `json:"has_pathway_analysis" yaml:"has_pathway_analysis"`
	UsesKEGG               bool `json:"uses_kegg" yaml:"uses_kegg"`

	NumWorkflowSteps      int `json:"num_workflow_steps" yaml:"num_workflow_steps"`
	NumToolsMentioned     int `json:"num_tools_mentioned" yaml:"num_tools_mentioned"`
	NumDatabasesMentioned int `json:"num_databases_mentioned" yaml:"num_databases_mentioned"`

	HasAnnotation bool `json:"has_annotation" yaml:"has_annotation"`

	// WorkflowCompleteness is a 1-5 rating; 0 marks a failed analysis.
	WorkflowCompleteness int `json:"workflow_completeness" yaml:"workflow_completeness"`

	// MainAnalyticalPlatform is the primary platform (e.g. "UPLC-Q Exactive/MS").
	MainAnalyticalPlatform string `json:"main_analytical_platform" yaml:"main_analytical_platform"`

	// Error records an analysis failure. Empty on success.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// FailedAnalysis returns the default row recorded when analysis of a
// workflow fails.
func FailedAnalysis(filename, errMsg string) WorkflowAnalysis {
	return WorkflowAnalysis{
		Filename:               filename,
		SampleType:             "error",
		MainAnalyticalPlatform: "error",
		Error:                  errMsg,
	}
}
