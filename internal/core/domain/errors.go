package domain

import "errors"

var (
	ErrNoMediaRequested  = errors.New("constraints request neither audio nor video")
	ErrNoActiveTransport = errors.New("no active peer transport")
	ErrCaptureFailed     = errors.New("local media capture failed")
	ErrSignalingFailed   = errors.New("signaling exchange failed")
	ErrStreamNotFound    = errors.New("stream not found")
)
