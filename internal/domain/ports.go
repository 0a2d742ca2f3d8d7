package domain

import "context"

// Executor runs a console command on behalf of an authenticated subscriber
// and returns the upstream response, if any.
type Executor interface {
	Execute(ctx context.Context, command string) (string, error)
}
