package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type geminiResponder struct {
	client *genai.Client
	model  string
	system string
}

// NewGeminiResponder creates a Responder backed by the Gemini chat API. The
// system instruction carries the gateway persona and the catalog briefing.
func NewGeminiResponder(ctx context.Context, apiKey, model, system string) (Responder, error) {
	if apiKey == "" {
		return nil, errors.New("gemini responder requires an API key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiResponder{client: client, model: model, system: system}, nil
}

func (g *geminiResponder) Reply(ctx context.Context, history []Message, input string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	if g.system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(g.system)}}
	}

	cs := model.StartChat()
	cs.History = toGeminiHistory(history)

	resp, err := cs.SendMessage(ctx, genai.Text(input))
	if err != nil {
		return "", fmt.Errorf("gemini chat: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini chat: empty candidate")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", errors.New("gemini chat: non-text candidate")
	}
	return string(text), nil
}

func toGeminiHistory(history []Message) []*genai.Content {
	var out []*genai.Content
	for _, m := range history {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Text)},
		})
	}
	return out
}
