package notify

import (
	"html"
	"regexp"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Render substitutes {{ name }} placeholders. Unknown names are left as written.
func Render(text string, vars map[string]string) string {
	return render(text, vars, false)
}

// RenderHTML is Render with values HTML-escaped, for message bodies.
func RenderHTML(text string, vars map[string]string) string {
	return render(text, vars, true)
}

func render(text string, vars map[string]string, escape bool) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok {
			return m
		}
		if escape {
			return html.EscapeString(v)
		}
		return v
	})
}
