package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockTextClient is a TextClient for testing.
// Respond, when set, decides the reply per prompt; otherwise ResponseText is returned.
type MockTextClient struct {
	Latency      time.Duration
	ShouldFail   bool
	ResponseText string
	Respond      func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

// NewMockTextClient creates a mock returning text for every prompt.
func NewMockTextClient(text string) *MockTextClient {
	return &MockTextClient{ResponseText: text}
}

// Name returns the client identifier.
func (c *MockTextClient) Name() string { return MockClientName }

// Generate records the prompt and returns the configured reply.
func (c *MockTextClient) Generate(ctx context.Context, req *TextRequest) (*TextResult, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, req.Prompt)
	c.mu.Unlock()

	if err := sleepCtx(ctx, c.Latency); err != nil {
		return nil, err
	}
	if c.ShouldFail {
		return nil, &StatusError{Provider: MockClientName, StatusCode: 500, Message: "mock failure"}
	}
	text := c.ResponseText
	if c.Respond != nil {
		var err error
		if text, err = c.Respond(req.Prompt); err != nil {
			return nil, err
		}
	}
	return &TextResult{Text: text, Provider: MockClientName, Model: "mock"}, nil
}

// Prompts returns every prompt received so far.
func (c *MockTextClient) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

// MockImageProvider returns fixed bytes, failing for prompts that contain FailOn.
type MockImageProvider struct {
	Latency time.Duration
	Data    []byte
	FailOn  string

	calls atomic.Int64
}

// Name returns the provider identifier.
func (p *MockImageProvider) Name() string { return "mock-image" }

// Generate returns Data as a JPEG.
func (p *MockImageProvider) Generate(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	p.calls.Add(1)
	if err := sleepCtx(ctx, p.Latency); err != nil {
		return nil, err
	}
	if p.FailOn != "" && strings.Contains(req.Prompt, p.FailOn) {
		return nil, &StatusError{Provider: p.Name(), StatusCode: 400, Message: "mock image failure"}
	}
	data := p.Data
	if data == nil {
		data = []byte{0xff, 0xd8, 0xff, 0xd9}
	}
	return &ImageResult{Data: data, MIMEType: "image/jpeg", Provider: p.Name()}, nil
}

// Calls returns the number of Generate calls.
func (p *MockImageProvider) Calls() int { return int(p.calls.Load()) }

// MockNarrator returns deterministic PCM (or MP3 bytes when Format is mp3).
type MockNarrator struct {
	Latency time.Duration
	Format  string
	FailOn  string

	calls atomic.Int64
}

// Name returns the provider identifier.
func (n *MockNarrator) Name() string { return "mock-narrator" }

// Narrate returns two bytes of audio per character of text.
func (n *MockNarrator) Narrate(ctx context.Context, req *NarrationRequest) (*NarrationResult, error) {
	n.calls.Add(1)
	if err := sleepCtx(ctx, n.Latency); err != nil {
		return nil, err
	}
	if n.FailOn != "" && strings.Contains(req.Text, n.FailOn) {
		return nil, fmt.Errorf("mock narration failure")
	}
	format := n.Format
	if format == "" {
		format = FormatPCM
	}
	audio := make([]byte, 2*len(req.Text))
	for i := range audio {
		audio[i] = byte(i)
	}
	return &NarrationResult{Audio: audio, Format: format, SampleRate: 24000, Provider: n.Name(), CharCount: len(req.Text)}, nil
}

// Calls returns the number of Narrate calls.
func (n *MockNarrator) Calls() int { return int(n.calls.Load()) }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

var (
	_ TextClient    = (*MockTextClient)(nil)
	_ ImageProvider = (*MockImageProvider)(nil)
	_ Narrator      = (*MockNarrator)(nil)
)
