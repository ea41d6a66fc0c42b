//go:generate go run go.uber.org/mock/mockgen -source=fetcher.go -destination=../../mocks/mock_fetcher.go -package=mocks
package store

import (
	"context"

	"chatroom/model"
)

// Fetcher performs the bulk fetch of the message history.
type Fetcher interface {
	FetchMessages(ctx context.Context) ([]model.Message, error)
}
