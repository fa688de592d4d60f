package provider

import "strings"

// Placeholder is the single substitution point a prompt template must carry.
const Placeholder = "{selection}"

// DefaultTemplate is used whenever the configured template is missing the
// placeholder or exceeds the template cap.
const DefaultTemplate = "Explain the meaning of the following text in simple, clear terms. " +
	"Keep the explanation short and do not repeat the text itself.\n\n" + Placeholder

const (
	maxTemplateLength = 2000
	// maxContextChars caps each context side independently; the characters
	// nearest the selection are the ones kept.
	maxContextChars = 500
)

// PromptSpec carries everything needed to build one prompt besides the
// selection itself.
type PromptSpec struct {
	Template          string
	LanguageDirective string
	ContextBefore     string
	ContextAfter      string
}

// BuildPrompt assembles the final prompt: optional language directive, the
// template with the sanitized selection substituted, then an optional
// delimited context block so the model can tell context from instruction.
func BuildPrompt(spec PromptSpec, selection string) string {
	template := spec.Template
	if len(template) > maxTemplateLength || !strings.Contains(template, Placeholder) {
		template = DefaultTemplate
	}

	var b strings.Builder
	if directive := strings.TrimSpace(spec.LanguageDirective); directive != "" {
		b.WriteString(directive)
		b.WriteString("\n\n")
	}
	b.WriteString(strings.ReplaceAll(template, Placeholder, selection))

	before := capContextBefore(spec.ContextBefore)
	after := capContextAfter(spec.ContextAfter)
	if before != "" || after != "" {
		b.WriteString("\n\nThe text appears in the following surrounding context:\n")
		if before != "" {
			b.WriteString("[CONTEXT BEFORE]\n")
			b.WriteString(before)
			b.WriteString("\n[/CONTEXT BEFORE]\n")
		}
		if after != "" {
			b.WriteString("[CONTEXT AFTER]\n")
			b.WriteString(after)
			b.WriteString("\n[/CONTEXT AFTER]\n")
		}
	}

	return b.String()
}

// capContextBefore keeps the tail: the characters adjacent to the selection.
func capContextBefore(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > maxContextChars {
		return string(runes[len(runes)-maxContextChars:])
	}
	return s
}

// capContextAfter keeps the head.
func capContextAfter(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > maxContextChars {
		return string(runes[:maxContextChars])
	}
	return s
}
