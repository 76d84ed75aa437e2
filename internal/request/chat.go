package request

const DefaultMaxTokens = 1024

type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	MaxTokens int    `json:"max_tokens" binding:"gte=1"`
}

// NewChatRequest returns a request carrying defaults, to be filled by binding.
func NewChatRequest() ChatRequest {
	return ChatRequest{MaxTokens: DefaultMaxTokens}
}

type ChatResponse struct {
	Response     string `json:"response"`
	Model        string `json:"model"`
	Timestamp    string `json:"timestamp"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
