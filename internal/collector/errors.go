package collector

import "codeberg.org/tessen/netdom/internal/errors"

const (
	ErrNoHandler       = errors.ErrNoHandler
	ErrDeviceLogin     = errors.ErrDeviceLogin
	ErrCollectFailed   = errors.ErrCollectFailed
	ErrCollectPanic    = errors.ErrCollectPanic
	ErrInvalidInterval = errors.ErrInvalidInterval
)
