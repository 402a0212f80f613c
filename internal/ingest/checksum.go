package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// checksumChunkSize is the read size used when hashing files.
const checksumChunkSize = 1 << 20

// FileSHA256 returns the lowercase hex SHA-256 digest of the file at path,
// reading it in 1 MiB chunks.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the scanned landing directory
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	buf := make([]byte, checksumChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("hash %s: %w", path, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
