package llm

// Message is one role-tagged entry of a chat completions request.
// Content is always the part-list form so text and images mix freely.
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart is a text or image_url fragment of a message.
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL wraps an image reference (typically a data: URL).
type ImageURL struct {
	URL string `json:"url"`
}

// TextMessage builds a single-part text message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: []ContentPart{{Type: "text", Text: text}}}
}

// ImageMessage builds a message carrying an inline JPEG followed by a
// text part, the shape vision endpoints expect for screenshot turns.
func ImageMessage(role, imageB64, text string) Message {
	return Message{Role: role, Content: []ContentPart{
		{Type: "image_url", ImageURL: &ImageURL{URL: "data:image/jpeg;base64," + imageB64}},
		{Type: "text", Text: text},
	}}
}

// ResponseFormat constrains the completion output shape.
type ResponseFormat struct {
	Type string `json:"type"` // "json_object"
}

// Request is an OpenAI-compatible chat completions request.
type Request struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float32         `json:"temperature,omitempty"`
	Seed           *int64          `json:"seed,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// Response is the subset of the chat completions response the crawler
// consumes.
type Response struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is one completion candidate.
type Choice struct {
	Index        int           `json:"index"`
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// ChoiceMessage is the assistant message inside a choice.
type ChoiceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token accounting for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
