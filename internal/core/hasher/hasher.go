// Package hasher streams a file's bytes to SHA-256 under a size cap (C5).
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/ftm-project/ftm/internal/errors"
)

const chunkSize = 64 * 1024

// Result is what a successful Read produces: the checksum, the exact
// byte count, and the bytes themselves (retained only when small enough
// to be worth keeping around for an immediate snapshot-store put).
type Result struct {
	Checksum string
	Size     int64
	Bytes    []byte
}

// Read hashes the file at path, aborting with a TooLarge AppError if the
// stream exceeds maxSize. Symlinks follow the OS default; cycle
// avoidance is the matcher's job (exclude rules), not this function's.
func Read(path string, maxSize int64) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, errors.IO("failed to open file", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	var total int64
	var keep []byte

	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > maxSize {
				return Result{}, errors.TooLarge(path, total, maxSize)
			}
			h.Write(buf[:n])
			keep = append(keep, buf[:n]...)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return Result{}, errors.IO("failed to read file", readErr)
		}
	}

	return Result{
		Checksum: hex.EncodeToString(h.Sum(nil)),
		Size:     total,
		Bytes:    keep,
	}, nil
}

// QuickDigest hashes a file with xxhash instead of SHA-256. It costs far
// less CPU per byte than Read, so callers use it as a cheap gate: if a
// file's xxhash and size match a prior QuickDigest, the content almost
// certainly matches too and the caller can skip a full SHA-256 Read.
func QuickDigest(path string, maxSize int64) (digest uint64, size int64, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		return 0, 0, errors.IO("failed to open file", openErr)
	}
	defer f.Close()

	h := xxhash.New()
	buf := make([]byte, chunkSize)
	var total int64

	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > maxSize {
				return 0, 0, errors.TooLarge(path, total, maxSize)
			}
			h.Write(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return 0, 0, errors.IO("failed to read file", readErr)
		}
	}

	return h.Sum64(), total, nil
}
