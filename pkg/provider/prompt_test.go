package provider

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPromptSubstitutesSelection(t *testing.T) {
	prompt := BuildPrompt(PromptSpec{Template: "Explain: {selection}"}, "the quick brown fox")
	assert.Equal(t, "Explain: the quick brown fox", prompt)
}

func TestMissingPlaceholderFallsBackToDefault(t *testing.T) {
	prompt := BuildPrompt(PromptSpec{Template: "a template with no placeholder"}, "my text")
	assert.Contains(t, prompt, "my text")
	assert.NotContains(t, prompt, "no placeholder")
}

func TestOversizedTemplateFallsBackToDefault(t *testing.T) {
	huge := strings.Repeat("x", maxTemplateLength+1) + Placeholder
	prompt := BuildPrompt(PromptSpec{Template: huge}, "my text")
	assert.Contains(t, prompt, "my text")
	assert.NotContains(t, prompt, "xxxxx")
}

func TestLanguageDirectiveIsPrepended(t *testing.T) {
	prompt := BuildPrompt(PromptSpec{
		Template:          "Explain: {selection}",
		LanguageDirective: "Respond in German.",
	}, "text")
	assert.True(t, strings.HasPrefix(prompt, "Respond in German.\n\n"))
}

func TestContextBlockIsDelimited(t *testing.T) {
	prompt := BuildPrompt(PromptSpec{
		Template:      "Explain: {selection}",
		ContextBefore: "the sentence before",
		ContextAfter:  "the sentence after",
	}, "text")

	require.Contains(t, prompt, "[CONTEXT BEFORE]\nthe sentence before\n[/CONTEXT BEFORE]")
	require.Contains(t, prompt, "[CONTEXT AFTER]\nthe sentence after\n[/CONTEXT AFTER]")
	// The instruction comes first, the context block after.
	assert.Less(t, strings.Index(prompt, "Explain: text"), strings.Index(prompt, "[CONTEXT BEFORE]"))
}

func TestContextSidesAreCappedIndependently(t *testing.T) {
	before := strings.Repeat("b", maxContextChars+100) + "END"
	after := "START" + strings.Repeat("a", maxContextChars+100)

	prompt := BuildPrompt(PromptSpec{
		Template:      "{selection}",
		ContextBefore: before,
		ContextAfter:  after,
	}, "x")

	// Before keeps its tail (nearest the selection), after keeps its head.
	assert.Contains(t, prompt, "END")
	assert.Contains(t, prompt, "START")
	assert.NotContains(t, prompt, strings.Repeat("b", maxContextChars+1))
	assert.NotContains(t, prompt, strings.Repeat("a", maxContextChars+1))
}

func TestNoContextMeansNoContextBlock(t *testing.T) {
	prompt := BuildPrompt(PromptSpec{Template: "Explain: {selection}"}, "text")
	assert.NotContains(t, prompt, "[CONTEXT")
}

func TestResolveModel(t *testing.T) {
	a := &OpenAIAdapter{}
	assert.Equal(t, "gpt-4o", ResolveModel(a, "gpt-4o"))
	assert.Equal(t, a.DefaultModel(), ResolveModel(a, "made-up-model"))
	assert.Equal(t, a.DefaultModel(), ResolveModel(a, ""))
}
