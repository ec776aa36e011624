package docling

import (
	"strings"
	"text/template"

	"doclingd/internal/engine"
)

// Chat markers of the Granite Docling template.
const (
	StartOfRole = "<|start_of_role|>"
	EndOfRole   = "<|end_of_role|>"
	EndOfText   = "<|end_of_text|>"
)

const chatTemplate = `{{- range .Messages -}}
{{ $.Start }}{{ .Role }}{{ $.EndRole }}
{{- range .Content -}}
{{- if eq .Type "image" }}{{ $.Image }}{{ else if eq .Type "text" }}{{ if .Text }}{{ .Text }}{{ else }}{{ $.Default }}{{ end }}{{ end -}}
{{- end -}}
{{ $.EndText }}
{{ end -}}
{{- if .AddGenerationPrompt }}{{ .Start }}assistant{{ .EndRole }}{{ end -}}`

var chatTmpl = template.Must(template.New("granite-docling").Parse(chatTemplate))

type chatData struct {
	Messages            []engine.Message
	AddGenerationPrompt bool
	Default             string
	Start               string
	EndRole             string
	EndText             string
	Image               string
}

func renderChat(messages []engine.Message, addGenerationPrompt bool, defaultInstruction string) (string, error) {
	var b strings.Builder
	err := chatTmpl.Execute(&b, chatData{
		Messages:            messages,
		AddGenerationPrompt: addGenerationPrompt,
		Default:             defaultInstruction,
		Start:               StartOfRole,
		EndRole:             EndOfRole,
		EndText:             EndOfText,
		Image:               ImageToken,
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
