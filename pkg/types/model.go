package types

// Model describes one chat model exposed by a provider.
type Model struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	ProviderID      string  `json:"providerID"`
	ContextLength   int     `json:"contextLength"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	SupportsTools   bool    `json:"supportsTools"`
	SupportsVision  bool    `json:"supportsVision"`
	InputPrice      float64 `json:"inputPrice"`  // USD per million input tokens
	OutputPrice     float64 `json:"outputPrice"` // USD per million output tokens
}
