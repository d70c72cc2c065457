package advisory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.StrictPolicy()

// fieldAliases lists the accepted JSON keys for each record field, canonical name first.
// The second names are what the earlier prompt asked providers to produce.
var fieldAliases = map[string][]string{
	"primaryTreatment":   {"primaryTreatment", "pesticide"},
	"organicAlternative": {"organicAlternative", "organic"},
	"description":        {"description"},
	"actionPlan":         {"actionPlan", "action"},
	"severity":           {"severity"},
	"affectedTargets":    {"affectedTargets", "crops_affected"},
}

// ParseRecord validates provider content and converts it into a Record.
// Every failure wraps ErrMalformedResponse.
func ParseRecord(content string) (Record, error) {
	content = stripFences(content)
	if content == "" {
		return Record{}, fmt.Errorf("%w: empty content", ErrMalformedResponse)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Record{}, fmt.Errorf("%w: invalid JSON object: %w", ErrMalformedResponse, err)
	}

	var (
		rec Record
		err error
	)
	if rec.PrimaryTreatment, err = stringField(raw, "primaryTreatment", true); err != nil {
		return Record{}, err
	}
	if rec.OrganicAlternative, err = stringField(raw, "organicAlternative", false); err != nil {
		return Record{}, err
	}
	if rec.Description, err = stringField(raw, "description", true); err != nil {
		return Record{}, err
	}
	if rec.ActionPlan, err = stringField(raw, "actionPlan", true); err != nil {
		return Record{}, err
	}

	sev, err := stringField(raw, "severity", true)
	if err != nil {
		return Record{}, err
	}
	var ok bool
	if rec.Severity, ok = ParseSeverity(sev); !ok {
		return Record{}, fmt.Errorf("%w: severity %q is not one of low, medium, high, unknown", ErrMalformedResponse, sev)
	}

	if rec.AffectedTargets, err = targetsField(raw); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func lookupField(raw map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	for _, key := range fieldAliases[name] {
		v, ok := raw[key]
		if ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return v, true
		}
	}
	return nil, false
}

func stringField(raw map[string]json.RawMessage, name string, required bool) (string, error) {
	v, ok := lookupField(raw, name)
	if !ok {
		if required {
			return "", fmt.Errorf("%w: missing field %q", ErrMalformedResponse, name)
		}
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", fmt.Errorf("%w: field %q must be a string", ErrMalformedResponse, name)
	}
	s = sanitize(s)
	if required && s == "" {
		return "", fmt.Errorf("%w: field %q is empty", ErrMalformedResponse, name)
	}
	return s, nil
}

// targetsField accepts either a JSON array of strings or a comma-separated string.
func targetsField(raw map[string]json.RawMessage) ([]string, error) {
	v, ok := lookupField(raw, "affectedTargets")
	if !ok {
		return nil, fmt.Errorf("%w: missing field %q", ErrMalformedResponse, "affectedTargets")
	}

	var list []string
	if err := json.Unmarshal(v, &list); err != nil {
		var joined string
		if err := json.Unmarshal(v, &joined); err != nil {
			return nil, fmt.Errorf("%w: field %q must be an array of strings", ErrMalformedResponse, "affectedTargets")
		}
		list = strings.Split(joined, ",")
	}

	targets := make([]string, 0, len(list))
	for _, t := range list {
		if t = sanitize(t); t != "" {
			targets = append(targets, t)
		}
	}
	return targets, nil
}

var angleBrackets = strings.NewReplacer("<", "", ">", "")

// sanitize strips any markup the provider produced, including markup hidden
// behind entities. The result never contains angle brackets.
func sanitize(s string) string {
	s = html.UnescapeString(sanitizer.Sanitize(html.UnescapeString(s)))
	return strings.TrimSpace(angleBrackets.Replace(s))
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return ""
	}
	body := lines[1:]
	// The closing fence may share a line with the end of the payload.
	last := strings.TrimSuffix(strings.TrimSpace(body[len(body)-1]), "```")
	if last == "" {
		body = body[:len(body)-1]
	} else {
		body[len(body)-1] = last
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}
