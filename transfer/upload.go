package transfer

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"netshare/envelope"
	"netshare/wire"
)

// SendUpload streams bytes [offset, totalSize) of the local file at
// localPath to w as chunk frames. The caller is responsible for
// sending UPLOAD_REQ first and reading UPLOAD_ACK to learn offset.
func SendUpload(w *wire.Writer, localPath string, transferID string, offset, totalSize int64) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local file for upload: %w", err)
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek to upload offset: %w", err)
	}

	buf := make([]byte, ChunkSize)
	pos := offset
	for pos < totalSize {
		toRead := int64(len(buf))
		if remaining := totalSize - pos; remaining < toRead {
			toRead = remaining
		}
		n, readErr := f.Read(buf[:toRead])
		if n > 0 {
			if err := writeChunk(w, transferID, pos, buf[:n]); err != nil {
				return err
			}
			pos += int64(n)
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return fmt.Errorf("read local file for upload: %w", readErr)
		}
	}
	return nil
}

func openUploadDestination(destPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, fmt.Errorf("create destination directory: %w", err)
	}
	f, err := os.OpenFile(destPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open upload destination: %w", err)
	}
	return f, nil
}

// ReceiveUpload reads a sequence of FILE_CHUNK/binary pairs from r,
// writing each into destPath starting at resumeOffset, until it reads
// a JSON frame whose envelope type is FILE_END. It enforces that
// cumulative written bytes never exceed declaredTotal and returns the
// running SHA-256 hex digest covering [0, resumeOffset) plus every
// chunk written, along with the raw FILE_END payload for the caller to
// decode and compare hashes.
func ReceiveUpload(r *wire.Reader, destPath string, resumeOffset, declaredTotal int64) (finalSHA256 string, fileEndPayload []byte, err error) {
	f, err := openUploadDestination(destPath)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	h := sha256.New()
	if err := SeedHash(h, f, resumeOffset); err != nil {
		return "", nil, err
	}
	if _, err := f.Seek(resumeOffset, io.SeekStart); err != nil {
		return "", nil, fmt.Errorf("seek to resume offset: %w", err)
	}

	pos := resumeOffset
	for {
		frame, err := r.ReadFrame()
		if err != nil {
			return "", nil, mapStreamErr(err)
		}
		if frame.Kind != wire.KindJSON {
			return "", nil, fmt.Errorf("%s: expected JSON frame in upload stream", envelope.CodeBadRequest)
		}
		env, err := envelope.Decode(frame.Payload)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %v", envelope.CodeBadRequest, err)
		}
		if env.Type == "FILE_END" {
			return HexDigest(h.Sum(nil)), frame.Payload, nil
		}
		if env.Type != chunkHeaderType {
			return "", nil, fmt.Errorf("%s: expected FILE_CHUNK or FILE_END, got %s", envelope.CodeBadRequest, env.Type)
		}
		var hdr envelope.FileChunk
		if err := env.DecodeInto(&hdr); err != nil {
			return "", nil, fmt.Errorf("%s: %v", envelope.CodeBadRequest, err)
		}
		if pos+int64(hdr.Length) > declaredTotal {
			return "", nil, ErrOvershoot
		}
		body, err := readChunkBody(r, hdr.Length)
		if err != nil {
			return "", nil, err
		}
		if _, err := f.Write(body); err != nil {
			return "", nil, fmt.Errorf("write uploaded chunk: %w", err)
		}
		h.Write(body)
		pos += int64(len(body))
	}
}
