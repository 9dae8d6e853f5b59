package gemini

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/phrazzld/omnimedia-api/internal/generation"
)

const defaultStyle = "default"

var (
	textPromptTemplate = template.Must(template.New("text").Parse(
		`{{if .Styled}}Write in a {{.Style}} style. {{end}}{{.Prompt}}`))

	imagePromptTemplate = template.Must(template.New("image").Parse(
		`{{.Prompt}}{{if .Styled}}, {{.Style}} style{{end}}{{if eq .Quality "hd"}}, highly detailed{{end}}`))
)

// promptData is the data passed to the prompt templates
type promptData struct {
	Prompt  string
	Style   string
	Styled  bool
	Quality string
}

// renderPrompt executes tmpl for req.
func renderPrompt(tmpl *template.Template, req generation.Request) (string, error) {
	data := promptData{
		Prompt:  strings.TrimSpace(req.Prompt),
		Style:   req.Style,
		Styled:  req.Style != "" && req.Style != defaultStyle,
		Quality: req.Quality,
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to execute %s prompt template: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}
