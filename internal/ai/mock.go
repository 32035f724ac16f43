package ai

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// MockClient echoes the final message without any network call.
type MockClient struct{}

const mockPrefix = "[mock-llm-response]: "

// Generate returns the mock prefix followed by the first 256 runes of the last message.
func (MockClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	content := []rune(req.Messages[len(req.Messages)-1].Content)
	if len(content) > 256 {
		content = content[:256]
	}
	return &GenerateResponse{
		ID:        "mock",
		Choices:   []Choice{{Message: Message{Role: "assistant", Content: mockPrefix + string(content)}}},
		RequestID: "mock_" + uuid.NewString(),
	}, nil
}
