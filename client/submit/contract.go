//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../../mocks/mock_submit.go -package=mocks
package submit

import "context"

// Poster performs the remote write of a new message.
type Poster interface {
	PostMessage(ctx context.Context, body string) error
}

// Notifier surfaces transient notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// Input is the text field a message is typed into.
type Input interface {
	Value() string
	Reset()
}
