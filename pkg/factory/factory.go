// Package factory provides a default implementation of the client.Factory interface,
// creating file transfer clients based on protocol name, and helpers that
// connect them and guarantee they are disconnected again.
package factory

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"digital.vasic.filetransfer/pkg/client"
	"digital.vasic.filetransfer/pkg/ftp"
	"digital.vasic.filetransfer/pkg/logging"
	"digital.vasic.filetransfer/pkg/sftp"
	"digital.vasic.filetransfer/pkg/webdav"
)

// DefaultFactory implements client.Factory for all supported protocols.
type DefaultFactory struct {
	// newClient builds the client for an already resolved protocol.
	newClient func(protocol client.Protocol, config *client.Config) client.Client
}

// NewDefaultFactory creates a new default client factory.
func NewDefaultFactory() *DefaultFactory {
	return &DefaultFactory{newClient: newProtocolClient}
}

func newProtocolClient(protocol client.Protocol, config *client.Config) client.Client {
	switch protocol {
	case client.ProtocolFTP:
		return ftp.NewFTPClient(config)
	case client.ProtocolSFTP:
		return sftp.NewSFTPClient(config)
	default:
		return webdav.NewWebDAVClient(config)
	}
}

// CreateClient creates an unconnected client. The protocol name is matched
// case-insensitively; when it is empty config.Protocol is used instead.
// The client gets a copy of config with Protocol cleared; the caller's
// config is not modified. No network I/O happens here.
func (f *DefaultFactory) CreateClient(protocol string, config *client.Config) (client.Client, error) {
	if protocol == "" && config != nil {
		protocol = config.Protocol
	}

	p, err := client.ParseProtocol(protocol)
	if err != nil {
		return nil, err
	}

	config = config.Clone()
	config.Protocol = ""
	return f.newClient(p, config), nil
}

// SupportedProtocols returns the list of supported protocols.
func (f *DefaultFactory) SupportedProtocols() []string {
	protocols := make([]string, 0, len(client.Protocols))
	for _, p := range client.Protocols {
		protocols = append(protocols, string(p))
	}
	return protocols
}

// Connect creates a client and connects it. If connecting fails the client
// is discarded and only the error is returned.
func (f *DefaultFactory) Connect(ctx context.Context, protocol string, config *client.Config) (client.Client, error) {
	c, err := f.CreateClient(protocol, config)
	if err != nil {
		return nil, err
	}

	log := logging.WithProtocol(string(c.GetProtocol()))
	if err := c.Connect(ctx); err != nil {
		log.WithError(err).Debug("connect failed")
		return nil, err
	}
	log.Debug("client ready")
	return c, nil
}

// ConnectSettings connects using loosely typed settings. The "protocol" key
// selects the client and is not passed on as part of its config; the
// settings map itself is left untouched.
func (f *DefaultFactory) ConnectSettings(ctx context.Context, settings map[string]interface{}) (client.Client, error) {
	protocol := client.GetStringSetting(settings, "protocol", "")
	config := client.ParseSettings(client.Options(settings).Without("protocol"))
	return f.Connect(ctx, protocol, config)
}

// ConnectCallback runs Connect in the background and hands the outcome to
// callback exactly once.
func (f *DefaultFactory) ConnectCallback(ctx context.Context, protocol string, config *client.Config, callback func(client.Client, error)) {
	go func() {
		callback(f.Connect(ctx, protocol, config))
	}()
}

// Result is the outcome of an asynchronous connect.
type Result struct {
	Client client.Client
	Err    error
}

// ConnectAsync runs Connect in the background. The returned channel
// receives exactly one Result and is then closed.
func (f *DefaultFactory) ConnectAsync(ctx context.Context, protocol string, config *client.Config) <-chan Result {
	results := make(chan Result, 1)
	go func() {
		defer close(results)
		c, err := f.Connect(ctx, protocol, config)
		results <- Result{Client: c, Err: err}
	}()
	return results
}

// Scoped is a connected client that is disconnected exactly once by Close.
type Scoped struct {
	client.Client

	ctx  context.Context
	once sync.Once
	err  error
}

// Close disconnects the client. Later calls return the first result.
func (s *Scoped) Close() error {
	s.once.Do(func() {
		s.err = s.Client.Disconnect(s.ctx)
		if s.err != nil {
			logging.WithProtocol(string(s.GetProtocol())).WithError(s.err).Warn("disconnect failed")
		}
	})
	return s.err
}

// Disposer connects a client and wraps it so the caller can defer Close.
func (f *DefaultFactory) Disposer(ctx context.Context, protocol string, config *client.Config) (*Scoped, error) {
	c, err := f.Connect(ctx, protocol, config)
	if err != nil {
		return nil, err
	}
	return &Scoped{Client: c, ctx: ctx}, nil
}

// Using connects a client, calls fn with it and disconnects afterwards,
// whether fn returns normally, returns an error or panics. An error from
// fn is always returned; a disconnect failure is appended to it.
func (f *DefaultFactory) Using(ctx context.Context, protocol string, config *client.Config, fn func(client.Client) error) (err error) {
	scoped, err := f.Disposer(ctx, protocol, config)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := scoped.Close()
		if closeErr == nil {
			return
		}
		if err == nil {
			err = fmt.Errorf("failed to disconnect: %w", closeErr)
			return
		}
		err = multierror.Append(err, closeErr)
	}()

	return fn(scoped.Client)
}

var defaultFactory = NewDefaultFactory()

// Connect connects a client using the default factory.
func Connect(ctx context.Context, protocol string, config *client.Config) (client.Client, error) {
	return defaultFactory.Connect(ctx, protocol, config)
}

// ConnectSettings connects a client from settings using the default factory.
func ConnectSettings(ctx context.Context, settings map[string]interface{}) (client.Client, error) {
	return defaultFactory.ConnectSettings(ctx, settings)
}

// Using runs fn with a client from the default factory.
func Using(ctx context.Context, protocol string, config *client.Config, fn func(client.Client) error) error {
	return defaultFactory.Using(ctx, protocol, config, fn)
}
