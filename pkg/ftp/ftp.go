// Package ftp implements the file transfer client for FTP protocol.
package ftp

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	goftp "github.com/jlaffaye/ftp"

	"digital.vasic.filetransfer/pkg/client"
	"digital.vasic.filetransfer/pkg/local"
	"digital.vasic.filetransfer/pkg/logging"
)

// DefaultPort is used when the config does not set one.
const DefaultPort = 21

// serverConn is the part of the FTP control channel the client uses.
type serverConn interface {
	Retr(path string) (io.ReadCloser, error)
	Stor(path string, r io.Reader) error
	MakeDir(path string) error
	RemoveDirRecur(path string) error
	Delete(path string) error
	List(path string) ([]*goftp.Entry, error)
	Quit() error
}

type dialFunc func(ctx context.Context, config *client.Config) (serverConn, error)

// Client implements client.Client for FTP protocol.
//
// FTP multiplexes every command over a single control channel, so the
// client runs one command at a time under cmd. The connection state has
// its own lock and can be read while a transfer is running.
type Client struct {
	config *client.Config
	dial   dialFunc
	cmd    sync.Mutex

	mu        sync.RWMutex
	conn      serverConn
	connected bool
}

// NewFTPClient creates a new FTP client.
func NewFTPClient(config *client.Config) *Client {
	return &Client{
		config: config,
		dial:   dialServer,
	}
}

// Connect opens the control channel and logs in.
func (c *Client) Connect(ctx context.Context) error {
	c.cmd.Lock()
	defer c.cmd.Unlock()

	if c.IsConnected() {
		return nil
	}

	conn, err := c.dial(ctx, c.config)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	logging.WithProtocol("ftp").WithField("host", c.config.Host).Debug("connected")
	return nil
}

func dialServer(ctx context.Context, config *client.Config) (serverConn, error) {
	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.PortOrDefault(DefaultPort)))

	conn, err := goftp.Dial(addr,
		goftp.DialWithContext(ctx),
		goftp.DialWithTimeout(config.TimeoutOrDefault()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to FTP server: %w", err)
	}

	user, pass := config.Username, config.Password
	if user == "" {
		user, pass = "anonymous", "anonymous"
	}
	if err := conn.Login(user, pass); err != nil {
		quit(conn)
		return nil, fmt.Errorf("failed to login to FTP server: %w", err)
	}

	if config.Path != "" {
		if err := conn.ChangeDir(config.Path); err != nil {
			quit(conn)
			return nil, fmt.Errorf("failed to change to base directory %s: %w", config.Path, err)
		}
	}

	return &ftpConn{ServerConn: conn}, nil
}

func quit(conn *goftp.ServerConn) {
	if err := conn.Quit(); err != nil {
		logging.WithProtocol("ftp").WithError(err).Warn("failed to close control channel")
	}
}

// ftpConn adapts *goftp.ServerConn to serverConn.
type ftpConn struct {
	*goftp.ServerConn
}

func (c *ftpConn) Retr(path string) (io.ReadCloser, error) {
	resp, err := c.ServerConn.Retr(path)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Disconnect closes the control channel. It is a no-op when not connected.
// The client reports disconnected at once; QUIT is sent after any command
// already in progress has finished.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	wasConnected := c.connected
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if !wasConnected || conn == nil {
		return nil
	}

	c.cmd.Lock()
	defer c.cmd.Unlock()
	logging.WithProtocol("ftp").WithField("host", c.config.Host).Debug("disconnected")
	return conn.Quit()
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.conn != nil
}

// SupportsStreams returns false: FTP transfers are buffered whole files.
func (c *Client) SupportsStreams() bool {
	return false
}

// CreateReadStream is not available over FTP.
func (c *Client) CreateReadStream(ctx context.Context, path string, opts client.Options) (io.ReadCloser, error) {
	return nil, client.ErrNotImplemented
}

// CreateWriteStream is not available over FTP.
func (c *Client) CreateWriteStream(ctx context.Context, path string, opts client.Options) (io.WriteCloser, error) {
	return nil, client.ErrNotImplemented
}

// lock acquires the control channel and fails fast when disconnected.
// Callers release it with c.cmd.Unlock.
func (c *Client) lock() (serverConn, error) {
	c.cmd.Lock()
	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		c.cmd.Unlock()
		return nil, client.NewNotConnectedError(client.ProtocolFTP)
	}
	return conn, nil
}

// Get downloads remotePath into a newly created local file.
func (c *Client) Get(ctx context.Context, remotePath, localPath string) error {
	conn, err := c.lock()
	if err != nil {
		return err
	}
	defer c.cmd.Unlock()

	resp, err := conn.Retr(remotePath)
	if err != nil {
		return fmt.Errorf("failed to retrieve FTP file %s: %w", remotePath, err)
	}

	err = local.Download(localPath, resp)
	if closeErr := resp.Close(); err == nil && closeErr != nil {
		return fmt.Errorf("failed to retrieve FTP file %s: %w", remotePath, closeErr)
	}
	return err
}

// Put uploads the regular file at localPath to remotePath.
func (c *Client) Put(ctx context.Context, localPath, remotePath string, opts client.Options) error {
	conn, err := c.lock()
	if err != nil {
		return err
	}
	defer c.cmd.Unlock()

	file, err := local.OpenSource(localPath)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := conn.Stor(remotePath, file); err != nil {
		return fmt.Errorf("failed to store FTP file %s: %w", remotePath, err)
	}
	return nil
}

// Mkdir creates a directory. With opts "recursive" set, missing parents
// are created first.
func (c *Client) Mkdir(ctx context.Context, path string, opts client.Options) error {
	conn, err := c.lock()
	if err != nil {
		return err
	}
	defer c.cmd.Unlock()

	if opts.Bool("recursive") {
		for _, parent := range parents(path) {
			// Parents may already exist; the final MakeDir reports real failures.
			_ = conn.MakeDir(parent)
		}
	}

	if err := conn.MakeDir(path); err != nil {
		return fmt.Errorf("failed to create FTP directory %s: %w", path, err)
	}
	return nil
}

// parents returns the ancestors of p from the outermost inwards.
func parents(p string) []string {
	trimmed := strings.Trim(p, "/")
	parts := strings.Split(trimmed, "/")
	prefix := ""
	if strings.HasPrefix(p, "/") {
		prefix = "/"
	}

	var out []string
	for i := 1; i < len(parts); i++ {
		out = append(out, prefix+strings.Join(parts[:i], "/"))
	}
	return out
}

// Rmdir removes a directory and its contents.
func (c *Client) Rmdir(ctx context.Context, path string) error {
	conn, err := c.lock()
	if err != nil {
		return err
	}
	defer c.cmd.Unlock()

	if err := conn.RemoveDirRecur(path); err != nil {
		return fmt.Errorf("failed to delete FTP directory %s: %w", path, err)
	}
	return nil
}

// Readdir lists the names in a directory, without "." and "..".
func (c *Client) Readdir(ctx context.Context, path string) ([]string, error) {
	conn, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer c.cmd.Unlock()

	entries, err := conn.List(path)
	if err != nil {
		return nil, fmt.Errorf("failed to list FTP directory %s: %w", path, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		names = append(names, entry.Name)
	}
	return names, nil
}

// Unlink deletes a file.
func (c *Client) Unlink(ctx context.Context, path string) error {
	conn, err := c.lock()
	if err != nil {
		return err
	}
	defer c.cmd.Unlock()

	if err := conn.Delete(path); err != nil {
		return fmt.Errorf("failed to delete FTP file %s: %w", path, err)
	}
	return nil
}

// GetProtocol returns the protocol name.
func (c *Client) GetProtocol() client.Protocol {
	return client.ProtocolFTP
}

// GetConfig returns the FTP configuration.
func (c *Client) GetConfig() *client.Config {
	return c.config
}
