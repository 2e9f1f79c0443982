package domain

// ChatMessage is the provider-agnostic role/text pair handed to the
// summarization collaborator.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
