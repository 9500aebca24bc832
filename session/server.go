package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"netshare/auth"
	"netshare/envelope"
	"netshare/logging"
	"netshare/notify"
	"netshare/registry"
	"netshare/safepath"
	"netshare/transfer"
	"netshare/wire"
)

// Identity is this node's self-description, sent in HELLO_ACK.
type Identity struct {
	DeviceID   string
	DeviceName string
	Proto      string
}

// Server drives the per-connection state machine. One Server instance
// is shared by every accepted connection; it owns no per-connection
// state itself (that lives in conn, created per Accept).
type Server struct {
	identity Identity
	policy   Policy
	shares   *registry.Registry
	roots    *rootCache

	// EnableHashOp dispatches the reserved HASH_REQ range-hash
	// operation. Default false: an incoming HASH_REQ gets the standard
	// unknown-type BAD_REQUEST fallback.
	EnableHashOp bool

	bus *notify.Bus
}

// NewServer constructs a Server. shares is the local share registry;
// bus receives lifecycle events (nil uses notify.Default).
func NewServer(identity Identity, policy Policy, shares *registry.Registry, bus *notify.Bus) *Server {
	if bus == nil {
		bus = notify.Default
	}
	return &Server{identity: identity, policy: policy, shares: shares, roots: newRootCache(), bus: bus}
}

// Serve accepts connections on ln until it returns an error (including
// on listener close), handling each on its own goroutine: the accept
// loop and each accepted connection are independent units of
// execution.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("accept connection: %w", err)
		}
		go s.handle(conn)
	}
}

type conn struct {
	net.Conn
	r *wire.Reader
	w *wire.Writer

	state        State
	serverNonce  []byte
	peerDeviceID string
	selectedAuth string
	authRequired bool
}

func (s *Server) handle(nc net.Conn) {
	defer nc.Close()
	c := &conn{
		Conn:  nc,
		r:     wire.NewReader(nc),
		w:     wire.NewWriter(nc),
		state: AwaitHello,
	}
	for {
		if c.state == Closed {
			return
		}
		_ = nc.SetDeadline(time.Now().Add(ControlTimeout))
		frame, err := c.r.ReadFrame()
		if err != nil {
			if err != io.EOF {
				logging.Default().Debugf("session read error from %s: %v", nc.RemoteAddr(), err)
			}
			return
		}
		if frame.Kind != wire.KindJSON {
			return
		}
		env, err := envelope.Decode(frame.Payload)
		if err != nil {
			_ = s.sendBadRequest(c, "", "malformed envelope")
			return
		}
		if !s.dispatch(c, env) {
			return
		}
	}
}

// dispatch handles one decoded request against the current state,
// returning false if the connection should close.
func (s *Server) dispatch(c *conn, env envelope.Envelope) bool {
	switch c.state {
	case AwaitHello:
		if env.Type != "HELLO" {
			_ = s.sendBadRequest(c, env.Type, "expected HELLO")
			return false
		}
		return s.handleHello(c, env)
	case AwaitAuth:
		if env.Type != "AUTH" {
			_ = s.sendBadRequest(c, env.Type, "expected AUTH")
			return false
		}
		return s.handleAuth(c, env)
	case Ready:
		return s.handleReady(c, env)
	default:
		return false
	}
}

func (s *Server) handleHello(c *conn, env envelope.Envelope) bool {
	var req envelope.HelloRequest
	if err := env.DecodeInto(&req); err != nil {
		_ = s.sendBadRequest(c, "HELLO", "malformed HELLO")
		return false
	}
	if req.Proto != s.identity.Proto {
		s.writeJSON(c, envelope.HelloAck{
			Header: envelope.NewError("HELLO_ACK", req.ReqID, envelope.CodeUnsupportedVersion,
				fmt.Sprintf("unsupported protocol %q", req.Proto)),
		})
		return false
	}
	if req.Auth != auth.ModeOpen && req.Auth != auth.ModePSK {
		s.writeJSON(c, envelope.HelloAck{
			Header: envelope.NewError("HELLO_ACK", req.ReqID, envelope.CodeBadRequest, "unsupported auth mode"),
		})
		return false
	}

	rawNonce, encNonce, err := auth.NewNonce()
	if err != nil {
		s.writeJSON(c, envelope.HelloAck{
			Header: envelope.NewError("HELLO_ACK", req.ReqID, envelope.CodeInternalError, "nonce generation failed"),
		})
		return false
	}
	c.serverNonce = rawNonce
	c.peerDeviceID = req.DeviceID
	selected, required := s.policy.SelectedAuth()
	c.selectedAuth = selected
	c.authRequired = required

	ack := envelope.HelloAck{
		Header:       envelope.NewOK("HELLO_ACK", req.ReqID),
		ServerID:     s.identity.DeviceID,
		Nonce:        encNonce,
		Auth:         []string{auth.ModeOpen, auth.ModePSK},
		AuthRequired: required,
		SelectedAuth: selected,
	}
	s.writeJSON(c, ack)

	if required {
		c.state = AwaitAuth
	} else {
		c.state = Ready
	}
	return true
}

func (s *Server) handleAuth(c *conn, env envelope.Envelope) bool {
	var req envelope.AuthRequest
	if err := env.DecodeInto(&req); err != nil {
		s.writeJSON(c, envelope.AuthOK{Header: envelope.NewError("AUTH_OK", req.ReqID, envelope.CodeBadRequest, "malformed AUTH")})
		return false
	}
	if s.policy.OpenMode {
		s.writeJSON(c, envelope.AuthOK{Header: envelope.NewOK("AUTH_OK", req.ReqID)})
		c.state = Ready
		return true
	}
	clientNonce, err := auth.DecodeNonce(req.ClientNonce)
	if err != nil {
		s.writeJSON(c, envelope.AuthOK{Header: envelope.NewError("AUTH_OK", req.ReqID, envelope.CodeBadRequest, "malformed client nonce")})
		return false
	}
	mac, err := auth.DecodeMAC(req.MAC)
	if err != nil {
		s.writeJSON(c, envelope.AuthOK{Header: envelope.NewError("AUTH_OK", req.ReqID, envelope.CodeBadRequest, "malformed mac")})
		return false
	}
	if s.policy.SharedKey == "" || !auth.Verify(s.policy.SharedKey, c.serverNonce, clientNonce, s.identity.DeviceID, c.peerDeviceID, mac) {
		s.writeJSON(c, envelope.AuthOK{Header: envelope.NewError("AUTH_OK", req.ReqID, envelope.CodeAuthFailed, "authentication failed")})
		return false
	}
	s.writeJSON(c, envelope.AuthOK{Header: envelope.NewOK("AUTH_OK", req.ReqID)})
	c.state = Ready
	return true
}

func (s *Server) handleReady(c *conn, env envelope.Envelope) bool {
	switch env.Type {
	case "PING":
		var req envelope.PingRequest
		_ = env.DecodeInto(&req)
		s.writeJSON(c, envelope.PongResponse{Header: envelope.NewOK("PONG", req.ReqID)})
		return true
	case "LIST_SHARES":
		return s.handleListShares(c, env)
	case "LIST_DIR":
		return s.handleListDir(c, env)
	case "STAT":
		return s.handleStat(c, env)
	case "DOWNLOAD_REQ":
		return s.handleDownload(c, env)
	case "UPLOAD_REQ":
		return s.handleUpload(c, env)
	case "HASH_REQ":
		if s.EnableHashOp {
			return s.handleHashRange(c, env)
		}
		return s.sendUnknown(c, env)
	default:
		return s.sendUnknown(c, env)
	}
}

func (s *Server) handleListShares(c *conn, env envelope.Envelope) bool {
	var req envelope.ListSharesRequest
	_ = env.DecodeInto(&req)
	shares, err := s.shares.List()
	if err != nil {
		s.writeJSON(c, envelope.ListSharesResponse{Header: envelope.NewError("LIST_SHARES_RESP", req.ReqID, envelope.CodeIOError, err.Error())})
		return true
	}
	views := make([]envelope.ShareView, 0, len(shares))
	for _, sh := range shares {
		views = append(views, envelope.ShareView{ShareID: sh.ShareID, Name: sh.Name, ReadOnly: sh.ReadOnly})
	}
	s.writeJSON(c, envelope.ListSharesResponse{Header: envelope.NewOK("LIST_SHARES_RESP", req.ReqID), Shares: views})
	return true
}

// resolveShareAndPath performs the common "find share, resolve path
// under its root" sequence used by LIST_DIR, STAT, DOWNLOAD_REQ and
// HASH_REQ.
func (s *Server) resolveShareAndPath(shareID, path string) (share registry.Share, resolved string, code string, msg string) {
	sh, ok, err := s.shares.Get(shareID)
	if err != nil {
		return registry.Share{}, "", envelope.CodeIOError, err.Error()
	}
	if !ok {
		return registry.Share{}, "", envelope.CodeNotFound, "unknown share"
	}
	root, err := s.roots.get(sh.LocalPath)
	if err != nil {
		return registry.Share{}, "", envelope.CodeIOError, err.Error()
	}
	resolved, err = root.Resolve(path)
	if err != nil {
		return registry.Share{}, "", envelope.CodePathTraversal, "path escapes share root"
	}
	return sh, resolved, "", ""
}

func (s *Server) handleListDir(c *conn, env envelope.Envelope) bool {
	var req envelope.ListDirRequest
	if err := env.DecodeInto(&req); err != nil {
		s.writeJSON(c, envelope.ListDirResponse{Header: envelope.NewError("LIST_DIR_RESP", req.ReqID, envelope.CodeBadRequest, "malformed LIST_DIR")})
		return true
	}
	_, resolved, code, msg := s.resolveShareAndPath(req.ShareID, req.Path)
	if code != "" {
		s.writeJSON(c, envelope.ListDirResponse{Header: envelope.NewError("LIST_DIR_RESP", req.ReqID, code, msg)})
		return true
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		s.writeJSON(c, envelope.ListDirResponse{Header: envelope.NewError("LIST_DIR_RESP", req.ReqID, envelope.CodeNotFound, "not a directory")})
		return true
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		s.writeJSON(c, envelope.ListDirResponse{Header: envelope.NewError("LIST_DIR_RESP", req.ReqID, envelope.CodeIOError, err.Error())})
		return true
	}
	out := make([]envelope.DirEntry, 0, len(entries))
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil {
			continue
		}
		de := envelope.DirEntry{Name: e.Name(), IsDir: e.IsDir()}
		if !e.IsDir() {
			de.Size = fi.Size()
			de.MtimeUTC = fi.ModTime().UTC().Format(time.RFC3339Nano)
		}
		out = append(out, de)
	}
	s.writeJSON(c, envelope.ListDirResponse{Header: envelope.NewOK("LIST_DIR_RESP", req.ReqID), Entries: out})
	return true
}

func (s *Server) handleStat(c *conn, env envelope.Envelope) bool {
	var req envelope.StatRequest
	if err := env.DecodeInto(&req); err != nil {
		s.writeJSON(c, envelope.StatResponse{Header: envelope.NewError("STAT_RESP", req.ReqID, envelope.CodeBadRequest, "malformed STAT")})
		return true
	}
	_, resolved, code, msg := s.resolveShareAndPath(req.ShareID, req.Path)
	if code != "" {
		s.writeJSON(c, envelope.StatResponse{Header: envelope.NewError("STAT_RESP", req.ReqID, code, msg)})
		return true
	}
	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		s.writeJSON(c, envelope.StatResponse{Header: envelope.NewError("STAT_RESP", req.ReqID, envelope.CodeNotFound, "not a regular file")})
		return true
	}
	size, sha, err := transfer.FullFileSHA256(resolved)
	if err != nil {
		s.writeJSON(c, envelope.StatResponse{Header: envelope.NewError("STAT_RESP", req.ReqID, envelope.CodeIOError, err.Error())})
		return true
	}
	s.writeJSON(c, envelope.StatResponse{
		Header: envelope.NewOK("STAT_RESP", req.ReqID),
		Stat:   &envelope.FileStat{Size: size, MtimeUTC: info.ModTime().UTC().Format(time.RFC3339Nano), SHA256: sha},
	})
	return true
}

func (s *Server) handleDownload(c *conn, env envelope.Envelope) bool {
	var req envelope.DownloadRequest
	if err := env.DecodeInto(&req); err != nil {
		s.writeJSON(c, envelope.DownloadAck{Header: envelope.NewError("DOWNLOAD_ACK", req.ReqID, envelope.CodeBadRequest, "malformed DOWNLOAD_REQ")})
		return false
	}
	_, resolved, code, msg := s.resolveShareAndPath(req.ShareID, req.Path)
	if code != "" {
		s.writeJSON(c, envelope.DownloadAck{Header: envelope.NewError("DOWNLOAD_ACK", req.ReqID, code, msg)})
		return false
	}
	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		s.writeJSON(c, envelope.DownloadAck{Header: envelope.NewError("DOWNLOAD_ACK", req.ReqID, envelope.CodeNotFound, "not a regular file")})
		return false
	}
	fullSize, fileSha, err := transfer.FullFileSHA256(resolved)
	if err != nil {
		s.writeJSON(c, envelope.DownloadAck{Header: envelope.NewError("DOWNLOAD_ACK", req.ReqID, envelope.CodeIOError, err.Error())})
		return false
	}
	clamped := transfer.ClampOffset(req.Offset, fullSize)
	s.writeJSON(c, envelope.DownloadAck{
		Header: envelope.NewOK("DOWNLOAD_ACK", req.ReqID),
		File:   &envelope.FileInfo{Size: fullSize, SHA256: fileSha},
		Offset: clamped,
	})

	c.state = Transfer
	_ = c.SetDeadline(time.Now().Add(ControlTimeout))
	runningSha, err := transfer.ServeDownload(c.w, resolved, req.TransferID, clamped, fullSize)
	if err != nil {
		logging.Default().Warnf("download transfer failed for %s: %v", resolved, err)
		return false
	}
	s.writeJSON(c, envelope.FileEnd{
		Header:     envelope.NewOK("FILE_END", req.ReqID),
		TransferID: req.TransferID,
		File:       &envelope.FileInfo{Size: fullSize, SHA256: runningSha},
	})
	s.bus.Publish(notify.Event{Level: notify.LevelInfo, Source: "transfer", Message: "download served", Data: map[string]any{"path": req.Path, "transferId": req.TransferID}})
	return false // one transfer per connection: close after completion
}

func (s *Server) handleUpload(c *conn, env envelope.Envelope) bool {
	var req envelope.UploadRequest
	if err := env.DecodeInto(&req); err != nil {
		s.writeJSON(c, envelope.UploadAck{Header: envelope.NewError("UPLOAD_ACK", req.ReqID, envelope.CodeBadRequest, "malformed UPLOAD_REQ")})
		return false
	}
	sh, ok, err := s.shares.Get(req.ShareID)
	if err != nil {
		s.writeJSON(c, envelope.UploadAck{Header: envelope.NewError("UPLOAD_ACK", req.ReqID, envelope.CodeIOError, err.Error())})
		return false
	}
	if !ok {
		s.writeJSON(c, envelope.UploadAck{Header: envelope.NewError("UPLOAD_ACK", req.ReqID, envelope.CodeNotFound, "unknown share")})
		return false
	}
	if sh.ReadOnly {
		s.writeJSON(c, envelope.UploadAck{Header: envelope.NewError("UPLOAD_ACK", req.ReqID, envelope.CodeReadOnly, "share is read-only")})
		return false
	}
	root, err := s.roots.get(sh.LocalPath)
	if err != nil {
		s.writeJSON(c, envelope.UploadAck{Header: envelope.NewError("UPLOAD_ACK", req.ReqID, envelope.CodeIOError, err.Error())})
		return false
	}
	destPath, err := resolveUploadDestination(root, req.Path)
	if err != nil {
		s.writeJSON(c, envelope.UploadAck{Header: envelope.NewError("UPLOAD_ACK", req.ReqID, envelope.CodePathTraversal, "path escapes share root")})
		return false
	}

	var resumeOffset int64
	if info, statErr := os.Stat(destPath); statErr == nil && !info.IsDir() {
		resumeOffset = transfer.ResumeOffset(info.Size(), req.File.Size)
	}
	s.writeJSON(c, envelope.UploadAck{Header: envelope.NewOK("UPLOAD_ACK", req.ReqID), Offset: resumeOffset})

	c.state = Transfer
	_ = c.SetDeadline(time.Now().Add(ControlTimeout))
	runningSha, endPayload, err := transfer.ReceiveUpload(c.r, destPath, resumeOffset, req.File.Size)
	if err != nil {
		if errors.Is(err, transfer.ErrOvershoot) {
			s.writeJSON(c, envelope.UploadDone{Header: envelope.NewError("UPLOAD_DONE", req.ReqID, envelope.CodeBadRequest, "declared size exceeded"), TransferID: req.TransferID})
		}
		logging.Default().Warnf("upload transfer failed for %s: %v", destPath, err)
		return false
	}
	var end envelope.FileEnd
	if env2, decodeErr := envelope.Decode(endPayload); decodeErr == nil {
		_ = env2.DecodeInto(&end)
	}

	if runningSha != req.File.SHA256 || end.File == nil || runningSha != end.File.SHA256 {
		s.writeJSON(c, envelope.UploadDone{Header: envelope.NewError("UPLOAD_DONE", req.ReqID, envelope.CodeIntegrityFailed, "sha256 mismatch"), TransferID: req.TransferID})
		return false
	}
	s.writeJSON(c, envelope.UploadDone{Header: envelope.NewOK("UPLOAD_DONE", req.ReqID), TransferID: req.TransferID})
	s.bus.Publish(notify.Event{Level: notify.LevelInfo, Source: "transfer", Message: "upload received", Data: map[string]any{"path": req.Path, "transferId": req.TransferID}})
	return false
}

func (s *Server) handleHashRange(c *conn, env envelope.Envelope) bool {
	var req envelope.HashRangeRequest
	if err := env.DecodeInto(&req); err != nil {
		s.writeJSON(c, envelope.HashRangeResponse{Header: envelope.NewError("HASH_RESP", req.ReqID, envelope.CodeBadRequest, "malformed HASH_REQ")})
		return true
	}
	_, resolved, code, msg := s.resolveShareAndPath(req.ShareID, req.Path)
	if code != "" {
		s.writeJSON(c, envelope.HashRangeResponse{Header: envelope.NewError("HASH_RESP", req.ReqID, code, msg)})
		return true
	}
	f, err := os.Open(resolved)
	if err != nil {
		s.writeJSON(c, envelope.HashRangeResponse{Header: envelope.NewError("HASH_RESP", req.ReqID, envelope.CodeIOError, err.Error())})
		return true
	}
	defer f.Close()
	if req.Offset < 0 || req.Length < 0 {
		s.writeJSON(c, envelope.HashRangeResponse{Header: envelope.NewError("HASH_RESP", req.ReqID, envelope.CodeInvalidRange, "negative offset/length")})
		return true
	}
	if _, err := f.Seek(req.Offset, io.SeekStart); err != nil {
		s.writeJSON(c, envelope.HashRangeResponse{Header: envelope.NewError("HASH_RESP", req.ReqID, envelope.CodeInvalidRange, "offset out of range")})
		return true
	}
	sha, err := rangeSHA256(f, req.Length)
	if err != nil {
		s.writeJSON(c, envelope.HashRangeResponse{Header: envelope.NewError("HASH_RESP", req.ReqID, envelope.CodeIOError, err.Error())})
		return true
	}
	s.writeJSON(c, envelope.HashRangeResponse{Header: envelope.NewOK("HASH_RESP", req.ReqID), SHA256: sha})
	return true
}

func (s *Server) sendUnknown(c *conn, env envelope.Envelope) bool {
	s.writeJSON(c, envelope.Header{
		Type:  env.Type + "_RESP",
		ReqID: env.ReqID,
		OK:    false,
		Error: &envelope.ErrorInfo{Code: envelope.CodeBadRequest, Message: "unknown message type"},
	})
	return true
}

func (s *Server) sendBadRequest(c *conn, reqType, msg string) error {
	respType := envelope.ResponseType(reqType)
	if reqType == "" {
		respType = "ERROR"
	}
	return s.writeJSONErr(c, envelope.Header{Type: respType, OK: false, Error: &envelope.ErrorInfo{Code: envelope.CodeBadRequest, Message: msg}})
}

func (s *Server) writeJSON(c *conn, v any) {
	if err := s.writeJSONErr(c, v); err != nil {
		logging.Default().Debugf("session write error to %s: %v", c.RemoteAddr(), err)
	}
}

func (s *Server) writeJSONErr(c *conn, v any) error {
	b, err := envelope.Encode(v)
	if err != nil {
		return err
	}
	return c.w.WriteFrame(wire.KindJSON, b)
}

func resolveUploadDestination(root safepath.Root, relPath string) (string, error) {
	// Resolve must succeed even though the destination file may not
	// exist yet; safepath.Resolve already tolerates a non-existent
	// trailing component.
	return root.Resolve(relPath)
}

func rangeSHA256(r io.Reader, length int64) (string, error) {
	h := sha256.New()
	if _, err := io.CopyN(h, r, length); err != nil && err != io.EOF {
		return "", err
	}
	return transfer.HexDigest(h.Sum(nil)), nil
}

// rootCache memoizes safepath.Root canonicalization per share local
// path, since a share's root rarely changes between requests.
type rootCache struct {
	mu    sync.RWMutex
	cache map[string]safepath.Root
}

func newRootCache() *rootCache { return &rootCache{cache: make(map[string]safepath.Root)} }

func (rc *rootCache) get(localPath string) (safepath.Root, error) {
	rc.mu.RLock()
	if r, ok := rc.cache[localPath]; ok {
		rc.mu.RUnlock()
		return r, nil
	}
	rc.mu.RUnlock()

	r, err := safepath.NewRoot(localPath)
	if err != nil {
		return safepath.Root{}, err
	}
	rc.mu.Lock()
	rc.cache[localPath] = r
	rc.mu.Unlock()
	return r, nil
}

// NewClientTransferID generates a fresh opaque transfer identifier.
func NewClientTransferID() string { return uuid.New().String() }
