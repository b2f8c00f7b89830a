// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"encoding/json"
	"fmt"

	"github.com/pdiddy/workflow-miner/internal/llm"
)

const systemPrompt = "You are an expert in metabolomics workflows. Analyze the provided workflow data and extract the requested information accurately."

const analysisPrompt = `Analyze this metabolomics workflow and extract the following information:

1. **has_untargeted_metabolomics**: Does the paper have an untargeted metabolomics workflow? (boolean)
2. **uses_ms**: Does the workflow use mass spectrometry (MS)? (boolean)
3. **uses_lcms**: Does the workflow use LC-MS or UPLC-MS? (boolean)
4. **uses_gcms**: Does the workflow use GC-MS? (boolean)
5. **uses_msms**: Does the workflow use MS/MS or tandem MS? (boolean)
6. **sample_type**: What type of samples were analyzed? (e.g., "zebrafish larvae", "mouse liver", "human aqueous humor", "unspecified")
7. **has_sample_prep**: Is sample preparation explicitly described? (boolean)
8. **has_extraction**: Is metabolite/lipid extraction explicitly described? (boolean)
9. **has_normalization**: Is data normalization explicitly described? (boolean)
10. **uses_pca**: Does the workflow use PCA? (boolean)
11. **uses_plsda**: Does the workflow use PLS-DA? (boolean)
12. **has_statistical_analysis**: Does the workflow include statistical analysis? (boolean)
13. **has_pathway_analysis**: Does the workflow include pathway analysis? (boolean)
14. **uses_kegg**: Does the workflow use KEGG database? (boolean)
15. **num_workflow_steps**: How many workflow steps are described? (integer)
16. **num_tools_mentioned**: How many tools/software are explicitly mentioned? (integer)
17. **num_databases_mentioned**: How many databases/APIs are explicitly mentioned? (integer)
18. **has_annotation**: Does the workflow include metabolite identification/annotation? (boolean)
19. **workflow_completeness**: Rate completeness on scale 1-5 (1=very incomplete, 5=very complete)
20. **main_analytical_platform**: Primary analytical platform (e.g., "UPLC-Q Exactive/MS", "LC-MS", "GC-MS", "unspecified")

Return as JSON with these exact keys.`

const schemaName = "workflow_analysis"

// fields lists every analysis key with its JSON schema type, in the order
// the prompt asks for them.
var fields = []struct {
	key, typ string
}{
	{"has_untargeted_metabolomics", "boolean"},
	{"uses_ms", "boolean"},
	{"uses_lcms", "boolean"},
	{"uses_gcms", "boolean"},
	{"uses_msms", "boolean"},
	{"sample_type", "string"},
	{"has_sample_prep", "boolean"},
	{"has_extraction", "boolean"},
	{"has_normalization", "boolean"},
	{"uses_pca", "boolean"},
	{"uses_plsda", "boolean"},
	{"has_statistical_analysis", "boolean"},
	{"has_pathway_analysis", "boolean"},
	{"uses_kegg", "boolean"},
	{"num_workflow_steps", "integer"},
	{"num_tools_mentioned", "integer"},
	{"num_databases_mentioned", "integer"},
	{"has_annotation", "boolean"},
	{"workflow_completeness", "integer"},
	{"main_analytical_platform", "string"},
}

// Schema returns the response schema for workflow analysis.
func Schema() *llm.Schema {
	props := make(map[string]any, len(fields))
	required := make([]string, len(fields))
	for i, f := range fields {
		prop := map[string]any{"type": f.typ}
		if f.key == "workflow_completeness" {
			prop["minimum"] = 1
			prop["maximum"] = 5
		}
		props[f.key] = prop
		required[i] = f.key
	}
	raw, err := json.Marshal(map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	})
	if err != nil {
		panic(fmt.Sprintf("encoding analysis schema: %v", err))
	}
	return &llm.Schema{Name: schemaName, Schema: raw}
}
