package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected matches every *NotConnectedError with errors.Is.
	ErrNotConnected = errors.New("client not connected")

	// ErrNotImplemented is returned by operations a protocol cannot provide.
	ErrNotImplemented = errors.New("Not implemented")
)

// NotConnectedError is returned by operations attempted on a disconnected client.
type NotConnectedError struct {
	Protocol Protocol
}

// NewNotConnectedError returns the not-connected error for protocol.
func NewNotConnectedError(protocol Protocol) *NotConnectedError {
	return &NotConnectedError{Protocol: protocol}
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("%s client not connected", e.Protocol.DisplayName())
}

// Is reports whether target is ErrNotConnected.
func (e *NotConnectedError) Is(target error) bool {
	return target == ErrNotConnected
}

// UnknownProtocolError is returned when a protocol name is not registered.
type UnknownProtocolError struct {
	Name string
}

func (e *UnknownProtocolError) Error() string {
	return fmt.Sprintf("Unknown file transfer protocol: %s", e.Name)
}

// NotAFileError is returned when an upload source is not a regular file.
type NotAFileError struct {
	Path string
}

func (e *NotAFileError) Error() string {
	return fmt.Sprintf("Not a file: %s", e.Path)
}
