package influxdb

import "errors"

var (
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrDisabled         = errors.New("influxdb: disabled in configuration")

	// ErrWriteFailed wraps every error passed to the SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
