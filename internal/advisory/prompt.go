package advisory

import (
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

const systemPrompt = `You are an agricultural pest-management advisor. Your job is to give farmers a short, practical advisory for one detected pest.

Rules:
1. Recommend one registered active ingredient as the primary treatment.
2. Suggest an organic or cultural alternative when one exists, otherwise use an empty string.
3. Keep the description to two sentences: what the pest is and what damage it causes.
4. The action plan must be concrete steps a farmer can take this week.
5. Rate severity as "low", "medium", "high", or "unknown" if you do not recognise the pest.
6. List the crops the pest commonly attacks, most important first.

You MUST respond with ONLY a JSON object. No markdown, no explanation, no preamble, no extra fields.

The object must have this exact structure:
{
  "primaryTreatment": "Active ingredient name",
  "organicAlternative": "Organic option or empty string",
  "description": "What the pest is and the damage it causes",
  "actionPlan": "Concrete steps for the farmer",
  "severity": "low|medium|high|unknown",
  "affectedTargets": ["crop", "crop"]
}`

const defaultUserTemplate = `Provide the advisory for the pest {{ .Label | quote }}.`

// PromptData is the data available to a user prompt template.
type PromptData struct {
	Label string
}

// Prompt renders the fixed-schema instruction sent to a provider.
type Prompt struct {
	user *template.Template
}

// DefaultPrompt returns the built-in prompt.
func DefaultPrompt() *Prompt {
	p, err := NewPrompt(defaultUserTemplate)
	if err != nil {
		panic(err)
	}
	return p
}

// NewPrompt parses a user prompt template. Templates have the sprig functions available.
func NewPrompt(userTemplate string) (*Prompt, error) {
	tmpl, err := template.New("advisory").Funcs(sprig.TxtFuncMap()).Parse(userTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template: %w", err)
	}
	return &Prompt{user: tmpl}, nil
}

// LoadPrompt reads a user prompt template from path. An empty path yields the default prompt.
func LoadPrompt(path string) (*Prompt, error) {
	if path == "" {
		return DefaultPrompt(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt file: %w", err)
	}
	return NewPrompt(string(data))
}

// Render returns the system and user prompt for label.
func (p *Prompt) Render(label string) (string, string, error) {
	var b strings.Builder
	if err := p.user.Execute(&b, PromptData{Label: label}); err != nil {
		return "", "", fmt.Errorf("rendering prompt: %w", err)
	}
	return systemPrompt, b.String(), nil
}

// SystemPrompt returns the system prompt for the provider.
func SystemPrompt() string {
	return systemPrompt
}

// RecordSchema is the JSON schema of the object a provider must return.
// Every property is required so the schema is usable in strict mode.
func RecordSchema() map[string]any {
	str := map[string]any{"type": "string"}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"primaryTreatment":   str,
			"organicAlternative": str,
			"description":        str,
			"actionPlan":         str,
			"severity": map[string]any{
				"type": "string",
				"enum": []string{"low", "medium", "high", "unknown"},
			},
			"affectedTargets": map[string]any{
				"type":  "array",
				"items": str,
			},
		},
		"required": []string{
			"primaryTreatment", "organicAlternative", "description",
			"actionPlan", "severity", "affectedTargets",
		},
		"additionalProperties": false,
	}
}
