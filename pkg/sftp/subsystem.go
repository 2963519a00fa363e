package sftp

import (
	"fmt"
	"io"
	"os"

	gosftp "github.com/pkg/sftp"

	"digital.vasic.filetransfer/pkg/client"
)

// subsystem adapts *gosftp.Client to session.
//
// Stream options:
//
//	flags  "r", "r+", "w", "wx", "w+", "a", "a+"
//	mode   permissions applied to files written or directories created
//	start  byte offset to seek to after opening
//
// Mkdir also honours "recursive".
type subsystem struct {
	client *gosftp.Client
}

func openFlags(flag string) (int, error) {
	switch flag {
	case "r":
		return os.O_RDONLY, nil
	case "r+":
		return os.O_RDWR, nil
	case "w":
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, nil
	case "wx":
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC | os.O_EXCL, nil
	case "w+":
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, nil
	case "a":
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, nil
	case "a+":
		return os.O_RDWR | os.O_CREATE | os.O_APPEND, nil
	default:
		return 0, fmt.Errorf("unsupported open flags %q", flag)
	}
}

func (s *subsystem) open(path string, opts client.Options, defaultFlag string) (*gosftp.File, error) {
	flags, err := openFlags(opts.String("flags", defaultFlag))
	if err != nil {
		return nil, err
	}
	mode, hasMode, err := opts.Mode()
	if err != nil {
		return nil, err
	}

	f, err := s.client.OpenFile(path, flags)
	if err != nil {
		return nil, err
	}

	if hasMode && flags&os.O_CREATE != 0 {
		if err := f.Chmod(mode); err != nil {
			f.Close()
			return nil, err
		}
	}

	if start := opts.Int64("start", 0); start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func (s *subsystem) OpenReader(path string, opts client.Options) (io.ReadCloser, error) {
	f, err := s.open(path, opts, "r")
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *subsystem) OpenWriter(path string, opts client.Options) (io.WriteCloser, error) {
	f, err := s.open(path, opts, "w")
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *subsystem) Mkdir(path string, opts client.Options) error {
	mode, hasMode, err := opts.Mode()
	if err != nil {
		return err
	}

	if opts.Bool("recursive") {
		err = s.client.MkdirAll(path)
	} else {
		err = s.client.Mkdir(path)
	}
	if err != nil {
		return err
	}

	if hasMode {
		return s.client.Chmod(path, mode)
	}
	return nil
}

func (s *subsystem) ReadDir(path string) ([]os.FileInfo, error) {
	return s.client.ReadDir(path)
}

func (s *subsystem) RemoveDirectory(path string) error {
	return s.client.RemoveDirectory(path)
}

func (s *subsystem) Remove(path string) error {
	return s.client.Remove(path)
}

func (s *subsystem) Close() error {
	return s.client.Close()
}
