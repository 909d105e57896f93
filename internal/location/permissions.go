package location

import "context"

// Permissions asks the platform for location authorization.
type Permissions interface {
	Request(ctx context.Context) (bool, error)
}

// StaticPermissions answers every request with a fixed, configured value.
type StaticPermissions bool

func (p StaticPermissions) Request(context.Context) (bool, error) {
	return bool(p), nil
}
