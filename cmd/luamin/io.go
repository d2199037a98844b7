package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/matryer/try"
)

// maxAttempts bounds the retries of opening a file that is locked by another process.
const maxAttempts = 5

// IsDir returns true if the passed string looks like it specifies a directory, false otherwise.
func IsDir(dir string) bool {
	if 0 < len(dir) && dir[len(dir)-1] == os.PathSeparator {
		return true
	}
	info, err := os.Lstat(dir)
	return err == nil && info.Mode().IsDir() && info.Mode()&os.ModeSymlink == 0
}

func openInputFile(input string) (io.ReadCloser, error) {
	if input == "" {
		return io.NopCloser(os.Stdin), nil
	}

	var r *os.File
	err := try.Do(func(attempt int) (bool, error) {
		var ferr error
		r, ferr = os.Open(input)
		return attempt < maxAttempts, ferr
	})
	if err != nil {
		return nil, fmt.Errorf("open input file %q: %w", input, err)
	}
	return r, nil
}

// readInputFiles reads and concatenates the inputs, separated by sep. An empty filename reads stdin.
func readInputFiles(filenames []string, sep []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	for i, filename := range filenames {
		if i != 0 {
			buf.Write(sep)
		}
		r, err := openInputFile(filename)
		if err != nil {
			return nil, err
		}
		_, err = buf.ReadFrom(r)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("read input file %q: %w", filename, err)
		}
	}
	return buf.Bytes(), nil
}

func openOutputFile(output string) (*os.File, error) {
	if output == "" {
		return os.Stdout, nil
	}

	dir := filepath.Dir(output)
	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, fmt.Errorf("creating directory %q: %w", dir, err)
	}

	var w *os.File
	err := try.Do(func(attempt int) (bool, error) {
		var ferr error
		w, ferr = os.OpenFile(output, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0666)
		return attempt < maxAttempts, ferr
	})
	if err != nil {
		return nil, fmt.Errorf("open output file %q: %w", output, err)
	}
	return w, nil
}
