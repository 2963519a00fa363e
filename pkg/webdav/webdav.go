// Package webdav implements the file transfer client for WebDAV protocol.
package webdav

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"

	"digital.vasic.filetransfer/pkg/client"
	"digital.vasic.filetransfer/pkg/local"
	"digital.vasic.filetransfer/pkg/logging"
)

// RequiredMethods must all be advertised in the Allow header on connect.
var RequiredMethods = []string{"OPTIONS", "GET", "PUT", "DELETE", "MKCOL", "PROPFIND"}

// Client implements client.Client for WebDAV protocol.
//
// HTTP is stateless, so "connected" only records that the OPTIONS check
// succeeded; there is no session to release.
type Client struct {
	config  *client.Config
	client  *http.Client
	baseURL *url.URL
	baseErr error

	mu        sync.RWMutex
	connected bool
}

// NewWebDAVClient creates a new WebDAV client.
func NewWebDAVClient(config *client.Config) *Client {
	timeout := config.TimeoutOrDefault()
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout}).DialContext
	transport.ResponseHeaderTimeout = timeout

	c := &Client{
		config: config,
		client: &http.Client{Transport: transport},
	}
	c.baseURL, c.baseErr = parseBaseURL(config)
	return c
}

// parseBaseURL builds the endpoint from BaseURL, or from Host and Port when
// BaseURL is empty, and appends the Path prefix.
func parseBaseURL(config *client.Config) (*url.URL, error) {
	raw := config.BaseURL
	if raw == "" {
		host := config.Host
		if config.Port > 0 {
			host = net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
		}
		raw = "http://" + host
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid WebDAV URL %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid WebDAV URL %q: missing scheme or host", raw)
	}
	if config.Path != "" && config.Path != "/" {
		u.Path = path.Join("/", u.Path, config.Path)
	}
	return u, nil
}

// Connect checks the server with an OPTIONS request against the base path
// and requires every method in RequiredMethods to be allowed.
func (c *Client) Connect(ctx context.Context) error {
	if c.baseErr != nil {
		return c.baseErr
	}

	req, err := c.newRequest(ctx, http.MethodOptions, "", nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		c.client.CloseIdleConnections()
		return err
	}
	resp.Body.Close()

	if missing := missingMethods(resp.Header); len(missing) > 0 {
		c.client.CloseIdleConnections()
		return &UnsupportedMethodsError{Methods: missing}
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	logging.WithProtocol("webdav").WithField("url", c.baseURL.String()).Debug("connected")
	return nil
}

func missingMethods(header http.Header) []string {
	allowed := make(map[string]bool)
	for _, value := range header.Values("Allow") {
		for _, method := range strings.Split(value, ",") {
			allowed[strings.ToUpper(strings.TrimSpace(method))] = true
		}
	}

	var missing []string
	for _, method := range RequiredMethods {
		if !allowed[method] {
			missing = append(missing, method)
		}
	}
	return missing
}

// Disconnect clears the connected flag and closes idle keep-alive
// connections.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.client.CloseIdleConnections()
	return nil
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

func (c *Client) checkConnected() error {
	if !c.IsConnected() {
		return client.NewNotConnectedError(client.ProtocolWebDAV)
	}
	return nil
}

// resolveURL joins remotePath onto the base path. The remote path is
// cleaned against "/" so it cannot climb above the base. A trailing slash
// is kept.
func (c *Client) resolveURL(remotePath string) string {
	u := *c.baseURL
	u.Path = path.Join("/", u.Path, path.Join("/", remotePath))
	if strings.HasSuffix(remotePath, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawPath = ""
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, remotePath string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.resolveURL(remotePath), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}

	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	if body != nil {
		if contentType := mime.TypeByExtension(path.Ext(remotePath)); contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
	}
	return req, nil
}

// do sends the request and translates any status >= 400 into a *StatusError.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, newStatusError(resp)
	}
	return resp, nil
}

// send issues a bodiless request and discards the response.
func (c *Client) send(ctx context.Context, method, remotePath string, header http.Header) error {
	if err := c.checkConnected(); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, method, remotePath, nil)
	if err != nil {
		return err
	}
	for key, values := range header {
		req.Header[key] = values
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// CreateReadStream returns a reader over the remote file. The GET request
// runs in the background; a status >= 400 is delivered as the read error
// and no part of the error body is ever returned as content.
func (c *Client) CreateReadStream(ctx context.Context, remotePath string, opts client.Options) (io.ReadCloser, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodGet, remotePath, nil)
	if err != nil {
		return nil, err
	}
	if start := opts.Int64("start", 0); start > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", start))
	}

	pr, pw := io.Pipe()
	go func() {
		resp, err := c.do(req)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		defer resp.Body.Close()

		_, err = io.Copy(pw, resp.Body)
		pw.CloseWithError(err)
	}()

	return pr, nil
}

// CreateWriteStream returns a writer whose content is sent as the body of
// a PUT request. Close waits for the response and reports a status >= 400
// as a *StatusError.
func (c *Client) CreateWriteStream(ctx context.Context, remotePath string, opts client.Options) (io.WriteCloser, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	req, err := c.newRequest(ctx, http.MethodPut, remotePath, pr)
	if err != nil {
		return nil, err
	}

	ws := &writeStream{pw: pw, done: make(chan error, 1)}
	go func() {
		resp, err := c.do(req)
		if err == nil {
			resp.Body.Close()
		}
		pr.CloseWithError(err)
		ws.done <- err
	}()

	return ws, nil
}

type writeStream struct {
	pw   *io.PipeWriter
	done chan error
	once sync.Once
	err  error
}

func (w *writeStream) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *writeStream) Close() error {
	w.once.Do(func() {
		w.pw.Close()
		w.err = <-w.done
	})
	return w.err
}

// Get downloads remotePath into a local file.
func (c *Client) Get(ctx context.Context, remotePath, localPath string) error {
	r, err := c.CreateReadStream(ctx, remotePath, nil)
	if err != nil {
		return err
	}
	defer r.Close()

	return local.Download(localPath, r)
}

// Put uploads the regular file at localPath to remotePath.
func (c *Client) Put(ctx context.Context, localPath, remotePath string, opts client.Options) error {
	if err := c.checkConnected(); err != nil {
		return err
	}

	file, err := local.OpenSource(localPath)
	if err != nil {
		return err
	}
	defer file.Close()

	w, err := c.CreateWriteStream(ctx, remotePath, opts)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(w, file)
	if err := w.Close(); err != nil {
		return err
	}
	return copyErr
}

// Mkdir creates a collection with MKCOL.
func (c *Client) Mkdir(ctx context.Context, remotePath string, opts client.Options) error {
	return c.send(ctx, "MKCOL", remotePath, nil)
}

// Rmdir deletes a collection and everything below it.
func (c *Client) Rmdir(ctx context.Context, remotePath string) error {
	if !strings.HasSuffix(remotePath, "/") {
		remotePath += "/"
	}
	return c.send(ctx, http.MethodDelete, remotePath, http.Header{"Depth": {"infinity"}})
}

// Unlink deletes a single resource.
func (c *Client) Unlink(ctx context.Context, remotePath string) error {
	return c.send(ctx, http.MethodDelete, remotePath, nil)
}

// Readdir lists the names in a collection using PROPFIND with depth 1.
func (c *Client) Readdir(ctx context.Context, remotePath string) ([]string, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, "PROPFIND", remotePath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Depth", "1")
	req.Header.Set("Content-Type", "text/xml")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read WebDAV response: %w", err)
	}

	prefix := path.Join("/", c.baseURL.Path, path.Join("/", remotePath))
	return parseMultistatus(body, prefix)
}

// GetProtocol returns the protocol name.
func (c *Client) GetProtocol() client.Protocol {
	return client.ProtocolWebDAV
}

// GetConfig returns the WebDAV configuration.
func (c *Client) GetConfig() *client.Config {
	return c.config
}
