// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/workflow-miner/internal/llm"
)

// systemPrompt is sent as the system message of every workflow extraction.
const systemPrompt = "You are a precise assistant that does not hallucinate or create new information for extracting workflows from scientific papers."

// instructions tell the model what part of the paper to mine and how.
const instructions = `You are an expert in untargeted metabolomics and workflow design.

Given the full text of a metabolomics paper, extract ONLY the untargeted metabolomics workflow
used in the study. Focus on the main experimental and computational steps, in execution order.
The workflow you extract should be detailed enough for a researcher to read and carry out.
Do not omit any details directly relevant to the workflow. Include any relevant tools/APIs/databases
used in the workflow.

Guidelines:
- Include only steps that are explicitly described or clearly implied from the text.
- Do NOT invent tools, databases, or steps that are not supported by the paper.
- Use concise, technical language suitable for a computational systems biology researcher.
- If something is missing or unclear in the paper, mark it as "unspecified" rather than guessing.

Return your answer as JSON following the provided schema exactly.`

// userPromptTmpl appends the paper text to the instructions.
var userPromptTmpl = template.Must(template.New("workflow").Parse(
	"{{.Instructions}}\n\nFull paper text:\n{{.FullText}}\n"))

// renderPrompt builds the user message for one paper's full text.
func renderPrompt(fullText string) (string, error) {
	var buf bytes.Buffer
	err := userPromptTmpl.Execute(&buf, struct {
		Instructions string
		FullText     string
	}{
		Instructions: strings.TrimSpace(instructions),
		FullText:     strings.TrimSpace(fullText),
	})
	if err != nil {
		return "", fmt.Errorf("rendering workflow prompt: %w", err)
	}
	return buf.String(), nil
}

// schemaName is the json_schema name sent with the response format.
const schemaName = "metabolomics_workflow_extraction"

var stringArray = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

// workflowSchema constrains the model's answer to a types.Workflow.
var workflowSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"paper_has_untargeted_metabolomics": map[string]any{"type": "boolean"},
		"workflow_steps": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"step_number": map[string]any{"type": "integer"},
					"step_name":   map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"category": map[string]any{
						"type":        "string",
						"description": "High-level category (e.g., sample prep, LC-MS acquisition, preprocessing, feature extraction, normalization, statistics, annotation, pathway analysis)",
					},
					"tools_software": stringArray,
					"databases_apis": stringArray,
					"inputs":         stringArray,
					"outputs":        stringArray,
					"is_explicit_in_paper": map[string]any{
						"type":        "boolean",
						"description": "True if this step is explicitly described; false if strongly implied.",
					},
				},
				"required": []string{
					"step_number",
					"step_name",
					"description",
					"category",
					"tools_software",
					"databases_apis",
					"inputs",
					"outputs",
					"is_explicit_in_paper",
				},
			},
		},
		"unspecified_or_omitted_steps": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Important steps that seem missing or under-specified.",
		},
		"notes_on_ambiguity": map[string]any{
			"type":        "string",
			"description": "Short explanation of any ambiguities or uncertainties in the extracted workflow.",
		},
	},
	"required": []string{
		"paper_has_untargeted_metabolomics",
		"workflow_steps",
		"unspecified_or_omitted_steps",
		"notes_on_ambiguity",
	},
}

// Schema returns the response schema for workflow extraction.
func Schema() *llm.Schema {
	raw, err := json.Marshal(workflowSchema)
	if err != nil {
		panic(fmt.Sprintf("encoding workflow schema: %v", err))
	}
	return &llm.Schema{Name: schemaName, Schema: raw}
}
