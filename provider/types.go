package provider

// Request is the upstream completion request body (§6).
type Request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// Message is one turn of the request's message array.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is one fragment of a message's content.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Response is the upstream response envelope; only the fields Complete
// consumes are represented (§6).
type Response struct {
	ID           string         `json:"id"`
	Model        string         `json:"model"`
	Role         string         `json:"role"`
	StopReason   string         `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Content      []ContentBlock `json:"content"`
}

// NoResponseText is substituted for an empty or whitespace-only first
// content fragment (§4.6).
const NoResponseText = "No response received"

// TextMessage builds a single-turn user request body with one text
// content block, the shape every gateway caller needs.
func TextMessage(model, prompt string, maxTokens int) Request {
	return Request{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []Message{
			{Role: "user", Content: []ContentBlock{{Type: "text", Text: prompt}}},
		},
	}
}
