// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// WorkflowStep is one step of an untargeted metabolomics workflow, in
// execution order.
type WorkflowStep struct {
	StepNumber  int    `json:"step_number" yaml:"step_number"`
	StepName    string `json:"step_name" yaml:"step_name"`
	Description string `json:"description" yaml:"description"`

	// Category is a high-level label such as "sample prep", "LC-MS acquisition"
	// or "pathway analysis".
	Category string `json:"category" yaml:"category"`

	ToolsSoftware []string `json:"tools_software" yaml:"tools_software"`
	DatabasesAPIs []string `json:"databases_apis" yaml:"databases_apis"`
	Inputs        []string `json:"inputs" yaml:"inputs"`
	Outputs       []string `json:"outputs" yaml:"outputs"`

	// IsExplicitInPaper is false when the step is strongly implied rather
	// than described.
	IsExplicitInPaper bool `json:"is_explicit_in_paper" yaml:"is_explicit_in_paper"`
}

// Workflow is the result of extracting the metabolomics workflow from one
// paper's full text.
type Workflow struct {
	PaperHasUntargetedMetabolomics bool           `json:"paper_has_untargeted_metabolomics" yaml:"paper_has_untargeted_metabolomics"`
	WorkflowSteps                  []WorkflowStep `json:"workflow_steps" yaml:"workflow_steps"`
	UnspecifiedOrOmittedSteps      []string       `json:"unspecified_or_omitted_steps" yaml:"unspecified_or_omitted_steps"`
	NotesOnAmbiguity               string         `json:"notes_on_ambiguity" yaml:"notes_on_ambiguity"`
}

// EmptyWorkflow returns a workflow with no steps and the given note. Slices
// are non-nil so they encode as [] rather than null.
func EmptyWorkflow(note string) Workflow {
	return Workflow{
		WorkflowSteps:             []WorkflowStep{},
		UnspecifiedOrOmittedSteps: []string{},
		NotesOnAmbiguity:          note,
	}
}

// WorkflowRecord is one element of the workflows JSON file.
type WorkflowRecord struct {
	Filename string   `json:"filename" yaml:"filename"`
	Title    string   `json:"title" yaml:"title"`
	Workflow Workflow `json:"workflow" yaml:"workflow"`
}
