// Package transfer implements the chunked streaming transfer engine
// shared by the session server (serving downloads, receiving uploads)
// and the session client (receiving downloads, sending uploads). It
// borrows, but does not own, the connection's frame reader/writer for
// the duration of one transfer.
package transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"netshare/envelope"
	"netshare/wire"
)

// ChunkSize is the size of one streamed slice, chosen within the
// 64-256 KiB range that keeps per-chunk framing overhead low without
// holding too much of a file in memory at once.
const ChunkSize = 128 * 1024

// HexDigest returns the lowercase hex SHA-256 digest of sum's current
// state. Every hash carried on the wire uses this form.
func HexDigest(sum []byte) string { return hex.EncodeToString(sum) }

// SeedHash streams the first n bytes of f into h, advancing f's cursor
// to n. It is used on both ends of a resumed transfer so the running
// hash always covers the full file, not just the bytes sent or
// received after the resume point.
func SeedHash(h io.Writer, f *os.File, n int64) error {
	if n <= 0 {
		_, err := f.Seek(0, io.SeekStart)
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek to seed hash: %w", err)
	}
	if _, err := io.CopyN(h, f, n); err != nil {
		return fmt.Errorf("seed hash over %d bytes: %w", n, err)
	}
	return nil
}

// FullFileSHA256 computes the SHA-256 of an entire file. STAT and the
// download ack both need this full-file hash computed ahead of any
// transfer.
func FullFileSHA256(path string) (size int64, sha256hex string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", fmt.Errorf("open file for hashing: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, "", fmt.Errorf("stat file for hashing: %w", err)
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, "", fmt.Errorf("hash file: %w", err)
	}
	return info.Size(), HexDigest(h.Sum(nil)), nil
}

// ClampOffset bounds a client-requested download offset into [0, fullSize].
func ClampOffset(offset, fullSize int64) int64 {
	if offset < 0 {
		return 0
	}
	if offset > fullSize {
		return fullSize
	}
	return offset
}

// ResumeOffset applies the upload resume rule: if the destination
// already has bytes that are a valid prefix length (existingLen <=
// declaredTotal), resume from there; otherwise restart from zero
// silently.
func ResumeOffset(existingLen, declaredTotal int64) int64 {
	if existingLen <= declaredTotal {
		return existingLen
	}
	return 0
}

// ErrOvershoot is returned when a peer writes more bytes than the
// declared total size permits.
var ErrOvershoot = fmt.Errorf("%s: cumulative written exceeds declared size", envelope.CodeBadRequest)

// ErrCancelled marks an unexpected end-of-stream mid-transfer, which
// both ends must treat as failure, never success.
var ErrCancelled = fmt.Errorf("transfer cancelled: unexpected end of stream")

func mapStreamErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrCancelled
	}
	return err
}

// chunkHeaderType is the envelope type of every chunk header frame, in
// both the download (server push) and the upload stream.
const chunkHeaderType = "FILE_CHUNK"

func writeChunk(w *wire.Writer, transferID string, offset int64, data []byte) error {
	hdr := envelope.FileChunk{
		Type:       chunkHeaderType,
		TransferID: transferID,
		Offset:     offset,
		Length:     int32(len(data)),
	}
	hdrBytes, err := envelope.Encode(hdr)
	if err != nil {
		return fmt.Errorf("encode chunk header: %w", err)
	}
	if err := w.WriteFrame(wire.KindJSON, hdrBytes); err != nil {
		return fmt.Errorf("write chunk header: %w", err)
	}
	if err := w.WriteFrame(wire.KindBinary, data); err != nil {
		return fmt.Errorf("write chunk body: %w", err)
	}
	return nil
}

func readChunkHeader(r *wire.Reader) (envelope.FileChunk, error) {
	frame, err := r.ReadFrame()
	if err != nil {
		return envelope.FileChunk{}, mapStreamErr(err)
	}
	if frame.Kind != wire.KindJSON {
		return envelope.FileChunk{}, fmt.Errorf("%s: expected chunk header frame, got binary", envelope.CodeBadRequest)
	}
	var hdr envelope.FileChunk
	env, err := envelope.Decode(frame.Payload)
	if err != nil {
		return envelope.FileChunk{}, fmt.Errorf("%s: %v", envelope.CodeBadRequest, err)
	}
	if err := env.DecodeInto(&hdr); err != nil {
		return envelope.FileChunk{}, fmt.Errorf("%s: %v", envelope.CodeBadRequest, err)
	}
	return hdr, nil
}

func readChunkBody(r *wire.Reader, expectLen int32) ([]byte, error) {
	frame, err := r.ReadFrame()
	if err != nil {
		return nil, mapStreamErr(err)
	}
	if frame.Kind != wire.KindBinary {
		return nil, fmt.Errorf("%s: expected binary chunk frame, got JSON", envelope.CodeBadRequest)
	}
	if int32(len(frame.Payload)) != expectLen {
		return nil, fmt.Errorf("%s: chunk body length %d does not match header length %d", envelope.CodeBadRequest, len(frame.Payload), expectLen)
	}
	return frame.Payload, nil
}
