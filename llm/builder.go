package llm

// BuildChatRequest composes the chat payload: one system entry first,
// then the prior turns in order as user/assistant pairs, then the new
// prompt. On retry the assistant answer of the last prior turn is
// dropped so the backend regenerates it, and no new prompt is appended.
func BuildChatRequest(model, systemPrompt string, prior []Exchange, isRetry bool, newPrompt string) Request {
	msgs := make([]Message, 0, 2*len(prior)+2)
	msgs = append(msgs, Message{Role: "system", Content: systemPrompt})
	for i, ex := range prior {
		msgs = append(msgs, Message{Role: "user", Content: ex.Question})
		if isRetry && i == len(prior)-1 {
			continue
		}
		msgs = append(msgs, Message{Role: "assistant", Content: ex.Answer})
	}
	if !isRetry {
		msgs = append(msgs, Message{Role: "user", Content: newPrompt})
	}
	return Request{Model: model, Messages: msgs}
}

// BuildImageRequest names the image model and carries the literal prompt.
func BuildImageRequest(model, prompt string) ImageRequest {
	return ImageRequest{Model: model, Prompt: prompt}
}
