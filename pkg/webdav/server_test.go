package webdav

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/webdav"

	"digital.vasic.filetransfer/pkg/client"
)

// startServer serves an in-memory WebDAV tree under /webdav. OPTIONS is
// answered directly because the handler only advertises the methods that
// apply to the existing resource.
func startServer(t *testing.T) *client.Config {
	t.Helper()
	handler := &webdav.Handler{
		Prefix:     "/webdav",
		FileSystem: webdav.NewMemFS(),
		LockSystem: webdav.NewMemLS(),
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "john" || pass != "117" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Allow", allowAll)
			w.Header().Set("DAV", "1, 2")
			return
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	return &client.Config{
		BaseURL:  ts.URL + "/webdav",
		Username: "john",
		Password: "117",
	}
}

func connectServer(t *testing.T) *Client {
	t.Helper()
	c := NewWebDAVClient(startServer(t))
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { c.Disconnect(context.Background()) })
	return c
}

func TestWebDAVServer_Connect_WrongPassword(t *testing.T) {
	config := startServer(t)
	config.Password = "wrong"

	c := NewWebDAVClient(config)
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, "WebDAV request error", err.Error())
	assert.False(t, c.IsConnected())
}

func TestWebDAVServer_PutGet_RoundTrip(t *testing.T) {
	c := connectServer(t)
	ctx := context.Background()
	localDir := t.TempDir()

	src := filepath.Join(localDir, "src.txt")
	dst := filepath.Join(localDir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("Hello, friend."), 0644))

	require.NoError(t, c.Put(ctx, src, "remote.txt", nil))
	require.NoError(t, c.Get(ctx, "remote.txt", dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "Hello, friend.", string(got))
}

func TestWebDAVServer_Streams(t *testing.T) {
	c := connectServer(t)
	ctx := context.Background()

	w, err := c.CreateWriteStream(ctx, "stream.txt", nil)
	require.NoError(t, err)
	_, err = io.WriteString(w, "Hello, friend.")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := c.CreateReadStream(ctx, "stream.txt", nil)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "Hello, friend.", string(data))
}

func TestWebDAVServer_Get_Missing(t *testing.T) {
	c := connectServer(t)

	r, err := c.CreateReadStream(context.Background(), "missing.txt", nil)
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	assert.Empty(t, data)
	statusErr, ok := err.(*StatusError)
	require.True(t, ok, "unexpected error %v", err)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestWebDAVServer_Directories(t *testing.T) {
	c := connectServer(t)
	ctx := context.Background()
	localDir := t.TempDir()

	require.NoError(t, c.Mkdir(ctx, "dir", nil))
	assert.Error(t, c.Mkdir(ctx, "dir", nil))

	for _, name := range []string{"fileA.txt", "fileB.js", "fileC.txt"} {
		src := filepath.Join(localDir, name)
		require.NoError(t, os.WriteFile(src, []byte(name), 0644))
		require.NoError(t, c.Put(ctx, src, "dir/"+name, nil))
	}

	names, err := c.Readdir(ctx, "dir")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"fileA.txt", "fileB.js", "fileC.txt"}, names)

	require.NoError(t, c.Unlink(ctx, "dir/fileB.js"))
	names, err = c.Readdir(ctx, "dir")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"fileA.txt", "fileC.txt"}, names)

	require.NoError(t, c.Rmdir(ctx, "dir"))

	_, err = c.Readdir(ctx, "dir")
	statusErr, ok := err.(*StatusError)
	require.True(t, ok, "unexpected error %v", err)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestWebDAVServer_Readdir_Root(t *testing.T) {
	c := connectServer(t)
	ctx := context.Background()

	require.NoError(t, c.Mkdir(ctx, "sub dir", nil))

	names, err := c.Readdir(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"sub dir"}, names)
}
