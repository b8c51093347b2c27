package analytics

import (
	"fmt"
	"sync"

	"github.com/posthog/posthog-go"
)

// Client is the part of posthog.Client seyal uses.
type Client interface {
	Enqueue(posthog.Message) error
	Close() error
}

type noopClient struct{}

func (noopClient) Enqueue(posthog.Message) error { return nil }
func (noopClient) Close() error                  { return nil }

// NewClient returns a PostHog client, or a client that drops every event
// when no key is configured.
func NewClient(apiKey, endpoint string) (Client, error) {
	if apiKey == "" {
		return noopClient{}, nil
	}

	config := posthog.Config{}
	if endpoint != "" {
		config.Endpoint = endpoint
	}

	client, err := posthog.NewWithConfig(apiKey, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create posthog client: %w", err)
	}
	return client, nil
}

// RecordingClient keeps captured events in memory.
type RecordingClient struct {
	mu       sync.Mutex
	captures []posthog.Capture
}

func (c *RecordingClient) Enqueue(msg posthog.Message) error {
	capture, ok := msg.(posthog.Capture)
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captures = append(c.captures, capture)
	return nil
}

func (c *RecordingClient) Close() error { return nil }

func (c *RecordingClient) Captures() []posthog.Capture {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]posthog.Capture{}, c.captures...)
}
