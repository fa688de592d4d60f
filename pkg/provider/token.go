package provider

import (
	"github.com/pkoukk/tiktoken-go"
)

// CountTokens returns the token count of text for a model. Used as a
// fallback when a provider response omits usage figures. Claude models are
// not in tiktoken's registry, so they fall through to the cl100k_base
// approximation.
func CountTokens(model string, text string) int {
	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tkm, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			// Last-ditch heuristic: ~4 chars per token for English text.
			return len(text) / 4
		}
	}
	return len(tkm.Encode(text, nil, nil))
}
