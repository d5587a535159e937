package patterns

// Defaults returns the built-in type-name -> pattern mapping used when no
// external pattern source is configured. Patterns are compiled
// case-insensitively by the detector; groups are non-capturing so matches
// surface the whole token.
func Defaults() map[string]string {
	return map[string]string{
		"CPF":         `\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`,
		"CNPJ":        `\b\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}\b`,
		"EMAIL":       `[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`,
		"PHONE":       `\(?\d{2}\)?\s?9?\d{4}-\d{4}\b`,
		"CREDIT_CARD": `\b(?:\d{4}[ -]?){3}\d{4}\b`,
		"IP_ADDRESS":  `\b(?:\d{1,3}\.){3}\d{1,3}\b`,
		"CEP":         `\b\d{5}-\d{3}\b`,
		"IBAN":        `\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`,
		"PASSWORD":    `(?:password|senha|pwd)["']?\s*[:=]\s*\S+`,
		"API_KEY":     `(?:api[_-]?key|secret|token)["']?\s*[:=]\s*["']?[a-z0-9_\-]{16,}`,
	}
}
