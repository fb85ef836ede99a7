package testkit

import (
	"context"
	"errors"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// FakeLLM replays scripted responses. Once the script is exhausted it
// keeps returning the last response, or Err when set.
type FakeLLM struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Calls     int
	Prompts   []string
}

var _ llms.Model = (*FakeLLM)(nil)

func (f *FakeLLM) next(prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.Prompts = append(f.Prompts, prompt)

	if f.Calls > len(f.Responses) {
		if f.Err != nil {
			return "", f.Err
		}
		if len(f.Responses) == 0 {
			return "", errors.New("fake llm: no responses scripted")
		}
		return f.Responses[len(f.Responses)-1], nil
	}
	return f.Responses[f.Calls-1], nil
}

func (f *FakeLLM) Call(ctx context.Context, prompt string, _ ...llms.CallOption) (string, error) {
	return f.next(prompt)
}

func (f *FakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent,
	_ ...llms.CallOption) (*llms.ContentResponse, error) {

	prompt := ""
	if len(messages) > 0 && len(messages[0].Parts) > 0 {
		if text, ok := messages[0].Parts[0].(llms.TextContent); ok {
			prompt = text.Text
		}
	}
	resp, err := f.next(prompt)
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: resp}},
	}, nil
}
