// Package sftp implements the file transfer client for SFTP protocol.
package sftp

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	gosftp "github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"digital.vasic.filetransfer/pkg/client"
	"digital.vasic.filetransfer/pkg/local"
	"digital.vasic.filetransfer/pkg/logging"
)

// DefaultPort is used when the config does not set one.
const DefaultPort = 22

// handleOption is reserved by the subsystem and never forwarded.
const handleOption = "handle"

// transport is the secure shell connection carrying the subsystem.
type transport interface {
	Close() error
}

// session is the SFTP subsystem opened on a transport.
type session interface {
	OpenReader(path string, opts client.Options) (io.ReadCloser, error)
	OpenWriter(path string, opts client.Options) (io.WriteCloser, error)
	Mkdir(path string, opts client.Options) error
	ReadDir(path string) ([]os.FileInfo, error)
	RemoveDirectory(path string) error
	Remove(path string) error
	Close() error
}

type dialFunc func(ctx context.Context, addr string, config *ssh.ClientConfig) (transport, error)

type subsystemFunc func(t transport) (session, error)

// Client implements client.Client for SFTP protocol.
type Client struct {
	config        *client.Config
	dial          dialFunc
	openSubsystem subsystemFunc

	mu        sync.RWMutex
	transport transport
	session   session
	connected bool
}

// NewSFTPClient creates a new SFTP client.
func NewSFTPClient(config *client.Config) *Client {
	return &Client{
		config:        config,
		dial:          dialSSH,
		openSubsystem: openSubsystem,
	}
}

// Connect establishes the secure transport, then starts the SFTP subsystem
// on it. If the subsystem fails the transport is closed before returning.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	sshConfig, err := c.clientConfig()
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.PortOrDefault(DefaultPort)))
	t, err := c.dial(ctx, addr, sshConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to SFTP server: %w", err)
	}

	s, err := c.openSubsystem(t)
	if err != nil {
		if closeErr := t.Close(); closeErr != nil {
			logging.WithProtocol("sftp").WithError(closeErr).Warn("failed to close transport")
		}
		return fmt.Errorf("failed to start SFTP subsystem: %w", err)
	}

	c.transport = t
	c.session = s
	c.connected = true
	logging.WithProtocol("sftp").WithField("host", addr).Debug("connected")
	return nil
}

func (c *Client) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if c.config.PrivateKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(c.config.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}

	if c.config.Password != "" {
		password := c.config.Password
		auth = append(auth,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	return &ssh.ClientConfig{
		User:            c.config.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback(c.config.HostKeyFingerprint),
		Timeout:         c.config.TimeoutOrDefault(),
	}, nil
}

// hostKeyCallback pins the host key when a fingerprint is configured.
func hostKeyCallback(fingerprint string) ssh.HostKeyCallback {
	if fingerprint == "" {
		return ssh.InsecureIgnoreHostKey()
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if got := ssh.FingerprintSHA256(key); got != fingerprint {
			return fmt.Errorf("host key mismatch for %s: got %s", hostname, got)
		}
		return nil
	}
}

func dialSSH(ctx context.Context, addr string, config *ssh.ClientConfig) (transport, error) {
	d := net.Dialer{Timeout: config.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(config.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetDeadline(deadline)

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(sshConn, chans, reqs), nil
}

func openSubsystem(t transport) (session, error) {
	conn, ok := t.(*ssh.Client)
	if !ok {
		return nil, fmt.Errorf("unsupported SSH transport %T", t)
	}
	sc, err := gosftp.NewClient(conn,
		gosftp.UseConcurrentReads(true),
		gosftp.UseConcurrentWrites(true),
	)
	if err != nil {
		return nil, err
	}
	return &subsystem{client: sc}, nil
}

// Disconnect closes the subsystem and the secure transport. It is a no-op
// when not connected.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	s, t := c.session, c.transport
	c.session = nil
	c.transport = nil
	c.connected = false

	if err := s.Close(); err != nil {
		logging.WithProtocol("sftp").WithError(err).Debug("subsystem close")
	}
	logging.WithProtocol("sftp").WithField("host", c.config.Host).Debug("disconnected")
	return t.Close()
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SupportsStreams returns true.
func (c *Client) SupportsStreams() bool {
	return true
}

func (c *Client) current() (session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected || c.session == nil {
		return nil, client.NewNotConnectedError(client.ProtocolSFTP)
	}
	return c.session, nil
}

// CreateReadStream opens a remote file for reading. The "handle" option is
// dropped before the call reaches the subsystem.
func (c *Client) CreateReadStream(ctx context.Context, path string, opts client.Options) (io.ReadCloser, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	return s.OpenReader(path, opts.Without(handleOption))
}

// CreateWriteStream opens a remote file for writing. The "handle" option is
// dropped before the call reaches the subsystem.
func (c *Client) CreateWriteStream(ctx context.Context, path string, opts client.Options) (io.WriteCloser, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	return s.OpenWriter(path, opts.Without(handleOption))
}

// Get downloads remotePath into a local file using concurrent reads.
func (c *Client) Get(ctx context.Context, remotePath, localPath string) error {
	s, err := c.current()
	if err != nil {
		return err
	}

	r, err := s.OpenReader(remotePath, nil)
	if err != nil {
		return fmt.Errorf("failed to open SFTP file %s: %w", remotePath, err)
	}
	defer r.Close()

	return local.Download(localPath, r)
}

// Put uploads the regular file at localPath using concurrent writes.
func (c *Client) Put(ctx context.Context, localPath, remotePath string, opts client.Options) error {
	s, err := c.current()
	if err != nil {
		return err
	}

	file, err := local.OpenSource(localPath)
	if err != nil {
		return err
	}
	defer file.Close()

	w, err := s.OpenWriter(remotePath, opts.Without(handleOption))
	if err != nil {
		return fmt.Errorf("failed to create SFTP file %s: %w", remotePath, err)
	}

	_, err = io.Copy(w, file)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write SFTP file %s: %w", remotePath, err)
	}
	return nil
}

// Mkdir creates a directory. Use client.WithMode to pass a raw mode.
func (c *Client) Mkdir(ctx context.Context, path string, opts client.Options) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	if err := s.Mkdir(path, opts); err != nil {
		return fmt.Errorf("failed to create SFTP directory %s: %w", path, err)
	}
	return nil
}

// Rmdir removes an empty directory.
func (c *Client) Rmdir(ctx context.Context, path string) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	if err := s.RemoveDirectory(path); err != nil {
		return fmt.Errorf("failed to delete SFTP directory %s: %w", path, err)
	}
	return nil
}

// Readdir lists the names in a directory.
func (c *Client) Readdir(ctx context.Context, path string) ([]string, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}

	entries, err := s.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to list SFTP directory %s: %w", path, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

// Unlink deletes a file.
func (c *Client) Unlink(ctx context.Context, path string) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	if err := s.Remove(path); err != nil {
		return fmt.Errorf("failed to delete SFTP file %s: %w", path, err)
	}
	return nil
}

// GetProtocol returns the protocol name.
func (c *Client) GetProtocol() client.Protocol {
	return client.ProtocolSFTP
}

// GetConfig returns the SFTP configuration.
func (c *Client) GetConfig() *client.Config {
	return c.config
}
