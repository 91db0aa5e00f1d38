// Package fileutil holds the file copy primitives used by export.
package fileutil

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultChunkSize is the buffer used for streamed copies.
const DefaultChunkSize = 4096

// CopyChunked streams src to dst in chunkSize pieces, checking ctx between
// chunks. dst is created or truncated with src's permission bits. It returns
// the number of bytes written.
func CopyChunked(ctx context.Context, src, dst string, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = out.Close()
	}()

	buf := make([]byte, chunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := in.Read(buf)
		if n > 0 {
			w, err := out.Write(buf[:n])
			written += int64(w)
			if err != nil {
				return written, err
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return written, readErr
		}
	}
	if err := out.Sync(); err != nil {
		return written, err
	}
	return written, out.Close()
}

// CopyVerified copies like CopyChunked and then re-reads dst, comparing its
// SHA-256 with the source. dst is removed on mismatch.
func CopyVerified(ctx context.Context, src, dst string, chunkSize int) (int64, error) {
	written, err := CopyChunked(ctx, src, dst, chunkSize)
	if err != nil {
		return written, err
	}
	srcSum, err := HashFile(src)
	if err != nil {
		return written, fmt.Errorf("hash source: %w", err)
	}
	dstSum, err := HashFile(dst)
	if err != nil {
		return written, fmt.Errorf("hash destination: %w", err)
	}
	if !bytes.Equal(srcSum, dstSum) {
		_ = os.Remove(dst)
		return written, errors.New("copy hash mismatch: file corrupted during copy")
	}
	return written, nil
}

// HashFile returns the SHA-256 digest of path.
func HashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// Sizes stats both paths and returns their sizes.
func Sizes(a, b string) (int64, int64, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return 0, 0, err
	}
	bi, err := os.Stat(b)
	if err != nil {
		return 0, 0, err
	}
	return ai.Size(), bi.Size(), nil
}
