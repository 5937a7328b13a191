//go:build !linux

package media

import "errors"

// ErrUnsupported is returned where no desktop media session exists.
var ErrUnsupported = errors.New("media session not supported on this platform")

// NewSession returns ErrUnsupported; callers fall back to NewNoOpSession.
func NewSession() (Session, error) {
	return nil, ErrUnsupported
}
