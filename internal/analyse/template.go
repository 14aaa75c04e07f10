package analyse

import (
	"strings"
	"text/template"
)

// render performs variable substitution with readable failures against
// the accumulated environment map so far. text/template is used purely
// as a substitution engine — a value like
// "{{.PATH}}/bin" expands against context["PATH"]; anything it cannot
// parse or execute is reported as an error for the caller to warn on
// and fall back to the raw value.
func render(raw string, context map[string]string) (string, error) {
	if !strings.Contains(raw, "{{") {
		return raw, nil
	}
	tmpl, err := template.New("env").Option("missingkey=zero").Parse(raw)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, context); err != nil {
		return "", err
	}
	return out.String(), nil
}
