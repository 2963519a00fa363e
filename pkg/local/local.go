// Package local implements the local filesystem side of file transfers.
package local

import (
	"io"
	"os"

	"digital.vasic.filetransfer/pkg/client"
)

// OpenSource opens a local file for upload. Errors from the local
// filesystem are returned unchanged; directories yield *client.NotAFileError.
func OpenSource(path string) (*os.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, &client.NotAFileError{Path: path}
	}
	return os.Open(path)
}

// Download creates or truncates the local file at path and fills it from r.
// It returns once the local write has completed.
func Download(path string, r io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	_, err = io.Copy(file, r)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	return err
}
