package transfer

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"netshare/wire"
)

// ServeDownload streams bytes [offset, fullSize) of the file at path to
// w as a sequence of chunk frames, seeding the running hash over the
// already-acknowledged prefix first so the final digest always covers
// the whole file. Callers must have already sent DOWNLOAD_ACK with the
// clamped offset before calling this.
func ServeDownload(w *wire.Writer, path string, transferID string, offset, fullSize int64) (finalSHA256 string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for download: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if err := SeedHash(h, f, offset); err != nil {
		return "", err
	}

	buf := make([]byte, ChunkSize)
	pos := offset
	for pos < fullSize {
		n, readErr := f.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			h.Write(chunk)
			if err := writeChunk(w, transferID, pos, chunk); err != nil {
				return "", err
			}
			pos += int64(n)
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return "", fmt.Errorf("read file for download: %w", readErr)
		}
	}
	return HexDigest(h.Sum(nil)), nil
}

// ReceiveDownload reads chunk frames from r and writes them into
// localPath starting at clampedOffset, truncating any stale tail
// first, returning the running SHA-256 over the whole file once the
// last chunk up to fullSize has been written. Reading and checking
// FILE_END is left to the caller.
func ReceiveDownload(r *wire.Reader, localPath string, clampedOffset, fullSize int64) (finalSHA256 string, err error) {
	f, err := os.OpenFile(localPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return "", fmt.Errorf("open local file for download: %w", err)
	}
	defer f.Close()

	if err := f.Truncate(clampedOffset); err != nil {
		return "", fmt.Errorf("truncate stale tail: %w", err)
	}

	h := sha256.New()
	if err := SeedHash(h, f, clampedOffset); err != nil {
		return "", err
	}
	if _, err := f.Seek(clampedOffset, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek to resume offset: %w", err)
	}

	pos := clampedOffset
	for pos < fullSize {
		hdr, err := readChunkHeader(r)
		if err != nil {
			return "", err
		}
		if hdr.Offset != pos {
			return "", fmt.Errorf("unexpected chunk offset %d, want %d", hdr.Offset, pos)
		}
		body, err := readChunkBody(r, hdr.Length)
		if err != nil {
			return "", err
		}
		if _, err := f.Write(body); err != nil {
			return "", fmt.Errorf("write downloaded chunk: %w", err)
		}
		h.Write(body)
		pos += int64(len(body))
	}
	return HexDigest(h.Sum(nil)), nil
}
