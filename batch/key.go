package batch

import "fmt"

// Key is the structural batch key: requests are merged only when model,
// prompt and maxTokens are all exactly equal. No similarity is used here,
// unlike the queue package's coalescence (§4.5).
type Key struct {
	Model     string
	Prompt    string
	MaxTokens int
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%d|%s", k.Model, k.MaxTokens, k.Prompt)
}
