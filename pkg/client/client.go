// Package client defines the uniform file transfer client interface
// shared by the FTP, SFTP and WebDAV protocol adapters.
package client

import (
	"context"
	"io"
	"strings"
)

// Protocol identifies one of the supported transfer protocols.
type Protocol string

// Supported protocols.
const (
	ProtocolFTP    Protocol = "ftp"
	ProtocolSFTP   Protocol = "sftp"
	ProtocolWebDAV Protocol = "webdav"
)

// Protocols lists every supported protocol in registration order.
var Protocols = []Protocol{ProtocolFTP, ProtocolSFTP, ProtocolWebDAV}

// ParseProtocol matches name case-insensitively against the supported protocols.
func ParseProtocol(name string) (Protocol, error) {
	switch Protocol(strings.ToLower(strings.TrimSpace(name))) {
	case ProtocolFTP:
		return ProtocolFTP, nil
	case ProtocolSFTP:
		return ProtocolSFTP, nil
	case ProtocolWebDAV:
		return ProtocolWebDAV, nil
	default:
		return "", &UnknownProtocolError{Name: name}
	}
}

// DisplayName returns the name used in user-facing messages.
func (p Protocol) DisplayName() string {
	switch p {
	case ProtocolFTP:
		return "FTP"
	case ProtocolSFTP:
		return "SFTP"
	case ProtocolWebDAV:
		return "WebDAV"
	default:
		return string(p)
	}
}

// Client defines the operations every protocol adapter exposes.
//
// A Client starts disconnected. Every operation except Connect, Disconnect,
// IsConnected and SupportsStreams fails with a *NotConnectedError until
// Connect succeeds, and again after Disconnect.
type Client interface {
	// Connection management
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
	SupportsStreams() bool

	// Streaming
	CreateReadStream(ctx context.Context, path string, opts Options) (io.ReadCloser, error)
	CreateWriteStream(ctx context.Context, path string, opts Options) (io.WriteCloser, error)

	// Whole-file transfer
	Get(ctx context.Context, remotePath, localPath string) error
	Put(ctx context.Context, localPath, remotePath string, opts Options) error

	// Directory and file operations
	Mkdir(ctx context.Context, path string, opts Options) error
	Rmdir(ctx context.Context, path string) error
	Readdir(ctx context.Context, path string) ([]string, error)
	Unlink(ctx context.Context, path string) error

	// Metadata
	GetProtocol() Protocol
	GetConfig() *Config
}

// Factory creates file transfer clients based on protocol.
type Factory interface {
	CreateClient(protocol string, config *Config) (Client, error)
	SupportedProtocols() []string
}
