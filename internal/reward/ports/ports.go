package ports

import "context"

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks EventPublisher

// EventPublisher delivers reward events to downstream payout workers.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}
