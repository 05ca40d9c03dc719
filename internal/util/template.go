package util

import (
	"fmt"
	"strings"
	"sync"
	"text/template"
)

var (
	templateFuncs = template.FuncMap{
		"default": func(fallback, v any) any {
			if v == nil || v == "" {
				return fallback
			}
			return v
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"trim":  strings.TrimSpace,
		"join": func(sep string, items any) string {
			switch v := items.(type) {
			case []string:
				return strings.Join(v, sep)
			case []any:
				parts := make([]string, len(v))
				for i, item := range v {
					parts[i] = fmt.Sprint(item)
				}
				return strings.Join(parts, sep)
			default:
				return fmt.Sprint(items)
			}
		},
	}

	// parsed caches templates by source text; instructions render every turn.
	parsed sync.Map
)

// RenderTemplate executes text as a text/template with vars as data. Text
// without actions is returned unchanged.
func RenderTemplate(text string, vars map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := parse(text)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, vars); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}

	return sb.String(), nil
}

func parse(text string) (*template.Template, error) {
	if t, ok := parsed.Load(text); ok {
		return t.(*template.Template), nil
	}

	t, err := template.New("instruction").Funcs(templateFuncs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	actual, _ := parsed.LoadOrStore(text, t)

	return actual.(*template.Template), nil
}
