package utils

// Rough token estimation: about 4 characters per token. Good enough for
// keeping narration prompts under a provider limit.

// CountTokens estimates the number of tokens in the given text.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateToTokenLimit cuts text to roughly fit within limit tokens.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	charLimit := limit * 4
	if charLimit >= len(runes) {
		return text
	}
	return string(runes[:charLimit])
}
