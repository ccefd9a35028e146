package llm

// Message is one chat-completion entry in the order the backend expects.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the chat-mode payload sent to the completion backend.
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// ImageRequest is the single-shot image-mode payload. It carries no
// conversation history.
type ImageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// Exchange is one prior question/answer pair fed back as context.
type Exchange struct {
	Question string
	Answer   string
}
