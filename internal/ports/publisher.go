package ports

import "context"

// Publisher delivers cart events to a topic.
type Publisher interface {
	PublishRaw(ctx context.Context, arn string, payload []byte) error
}
