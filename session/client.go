package session

import (
	"fmt"
	"net"
	"time"

	"netshare/auth"
	"netshare/envelope"
	"netshare/transfer"
	"netshare/wire"
)

// Client drives the session client side of the protocol: opens a TCP
// connection, performs the handshake, and exposes request helpers. One
// Client wraps exactly one connection and is good for exactly one
// transfer, per the one-transfer-per-connection invariant.
type Client struct {
	identity Identity
	sharedKey string

	conn         net.Conn
	r            *wire.Reader
	w            *wire.Writer
	state        State
	serverID     string
	serverNonce  []byte
	authRequired bool
	selectedAuth string
}

// Dial opens a TCP connection to addr and returns an unauthenticated
// Client; call Handshake next.
func Dial(addr string, identity Identity, sharedKey string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, ControlTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{
		identity:  identity,
		sharedKey: sharedKey,
		conn:      conn,
		r:         wire.NewReader(conn),
		w:         wire.NewWriter(conn),
		state:     AwaitHello,
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) roundTrip(reqType string, req any) (envelope.Envelope, error) {
	b, err := envelope.Encode(req)
	if err != nil {
		return envelope.Envelope{}, fmt.Errorf("encode %s: %w", reqType, err)
	}
	_ = c.conn.SetDeadline(time.Now().Add(ControlTimeout))
	if err := c.w.WriteFrame(wire.KindJSON, b); err != nil {
		return envelope.Envelope{}, fmt.Errorf("write %s: %w", reqType, err)
	}
	frame, err := c.r.ReadFrame()
	if err != nil {
		return envelope.Envelope{}, fmt.Errorf("read response to %s: %w", reqType, err)
	}
	if frame.Kind != wire.KindJSON {
		return envelope.Envelope{}, fmt.Errorf("read response to %s: unexpected binary frame", reqType)
	}
	return envelope.Decode(frame.Payload)
}

// responseError turns a failed envelope into a Go error carrying the
// server's error code/message verbatim.
func responseError(env envelope.Envelope) error {
	if env.Error == nil {
		return fmt.Errorf("request failed with no error detail")
	}
	return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
}

// Handshake performs HELLO, then AUTH if the server's advertised
// policy requires it. The client always prefers the server's
// advertised authRequired/selectedAuth over its own local
// configuration; a client with no configured key fails here rather
// than sending an empty-key MAC.
func (c *Client) Handshake(reqID string) error {
	hello := envelope.HelloRequest{
		Type: "HELLO", ReqID: reqID,
		Proto: c.identity.Proto, DeviceID: c.identity.DeviceID, DeviceName: c.identity.DeviceName,
		Auth: auth.ModeOpen,
	}
	if c.sharedKey != "" {
		hello.Auth = auth.ModePSK
	}
	env, err := c.roundTrip("HELLO", hello)
	if err != nil {
		return err
	}
	var ack envelope.HelloAck
	if err := env.DecodeInto(&ack); err != nil {
		return fmt.Errorf("decode HELLO_ACK: %w", err)
	}
	if !ack.OK {
		return responseError(env)
	}
	c.serverID = ack.ServerID
	c.serverNonce, err = auth.DecodeNonce(ack.Nonce)
	if err != nil {
		return fmt.Errorf("decode server nonce: %w", err)
	}
	c.authRequired = ack.AuthRequired
	c.selectedAuth = ack.SelectedAuth

	if !c.authRequired && c.selectedAuth != auth.ModePSK {
		c.state = Ready
		return nil
	}
	if c.sharedKey == "" {
		return fmt.Errorf("%s: server requires authentication but no shared key is configured", envelope.CodeAuthRequired)
	}
	return c.authenticate(reqID + "-auth")
}

func (c *Client) authenticate(reqID string) error {
	rawClientNonce, encClientNonce, err := auth.NewNonce()
	if err != nil {
		return err
	}
	mac := auth.ComputeMAC(c.sharedKey, c.serverNonce, rawClientNonce, c.serverID, c.identity.DeviceID)
	req := envelope.AuthRequest{
		Type: "AUTH", ReqID: reqID,
		ClientNonce: encClientNonce,
		MAC:         auth.EncodeMAC(mac),
	}
	env, err := c.roundTrip("AUTH", req)
	if err != nil {
		return err
	}
	var ok envelope.AuthOK
	if err := env.DecodeInto(&ok); err != nil {
		return fmt.Errorf("decode AUTH_OK: %w", err)
	}
	if !ok.OK {
		return responseError(env)
	}
	c.state = Ready
	return nil
}

// Ping sends PING and confirms PONG{ok=true}.
func (c *Client) Ping(reqID string) error {
	env, err := c.roundTrip("PING", envelope.PingRequest{Type: "PING", ReqID: reqID})
	if err != nil {
		return err
	}
	var pong envelope.PongResponse
	if err := env.DecodeInto(&pong); err != nil {
		return fmt.Errorf("decode PONG: %w", err)
	}
	if !pong.OK {
		return responseError(env)
	}
	return nil
}

// ListShares returns the peer's advertised shares.
func (c *Client) ListShares(reqID string) ([]envelope.ShareView, error) {
	env, err := c.roundTrip("LIST_SHARES", envelope.ListSharesRequest{Type: "LIST_SHARES", ReqID: reqID})
	if err != nil {
		return nil, err
	}
	var resp envelope.ListSharesResponse
	if err := env.DecodeInto(&resp); err != nil {
		return nil, fmt.Errorf("decode LIST_SHARES_RESP: %w", err)
	}
	if !resp.OK {
		return nil, responseError(env)
	}
	return resp.Shares, nil
}

// ListDir returns the immediate children of shareID:path.
func (c *Client) ListDir(reqID, shareID, path string) ([]envelope.DirEntry, error) {
	env, err := c.roundTrip("LIST_DIR", envelope.ListDirRequest{Type: "LIST_DIR", ReqID: reqID, ShareID: shareID, Path: path})
	if err != nil {
		return nil, err
	}
	var resp envelope.ListDirResponse
	if err := env.DecodeInto(&resp); err != nil {
		return nil, fmt.Errorf("decode LIST_DIR_RESP: %w", err)
	}
	if !resp.OK {
		return nil, responseError(env)
	}
	return resp.Entries, nil
}

// Stat returns metadata for shareID:path.
func (c *Client) Stat(reqID, shareID, path string) (envelope.FileStat, error) {
	env, err := c.roundTrip("STAT", envelope.StatRequest{Type: "STAT", ReqID: reqID, ShareID: shareID, Path: path})
	if err != nil {
		return envelope.FileStat{}, err
	}
	var resp envelope.StatResponse
	if err := env.DecodeInto(&resp); err != nil {
		return envelope.FileStat{}, fmt.Errorf("decode STAT_RESP: %w", err)
	}
	if !resp.OK || resp.Stat == nil {
		return envelope.FileStat{}, responseError(env)
	}
	return *resp.Stat, nil
}

// Download issues DOWNLOAD_REQ and streams the result into localPath,
// resuming from offset. It returns once FILE_END has been received and
// verified against both hashes.
func (c *Client) Download(reqID, transferID, shareID, path, localPath string, offset int64) error {
	env, err := c.roundTrip("DOWNLOAD_REQ", envelope.DownloadRequest{
		Type: "DOWNLOAD_REQ", ReqID: reqID, TransferID: transferID, ShareID: shareID, Path: path, Offset: offset,
	})
	if err != nil {
		return err
	}
	var ack envelope.DownloadAck
	if err := env.DecodeInto(&ack); err != nil {
		return fmt.Errorf("decode DOWNLOAD_ACK: %w", err)
	}
	if !ack.OK || ack.File == nil {
		return responseError(env)
	}
	c.state = Transfer
	_ = c.conn.SetDeadline(time.Now().Add(ControlTimeout))

	runningSha, err := transfer.ReceiveDownload(c.r, localPath, ack.Offset, ack.File.Size)
	if err != nil {
		return fmt.Errorf("receive download: %w", err)
	}

	frame, err := c.r.ReadFrame()
	if err != nil {
		return fmt.Errorf("read FILE_END: %w", err)
	}
	if frame.Kind != wire.KindJSON {
		return fmt.Errorf("read FILE_END: unexpected binary frame")
	}
	endEnv, err := envelope.Decode(frame.Payload)
	if err != nil {
		return fmt.Errorf("decode FILE_END: %w", err)
	}
	var end envelope.FileEnd
	if err := endEnv.DecodeInto(&end); err != nil {
		return fmt.Errorf("decode FILE_END: %w", err)
	}
	if !end.OK || end.File == nil {
		return responseError(endEnv)
	}
	if runningSha != ack.File.SHA256 || runningSha != end.File.SHA256 {
		return fmt.Errorf("%s: downloaded file hash mismatch", envelope.CodeIntegrityFailed)
	}
	return nil
}

// Upload issues UPLOAD_REQ and streams localPath to the peer. Uploads
// always restart from the server's reported offset, which may be
// mid-file.
func (c *Client) Upload(reqID, transferID, shareID, path, localPath string) error {
	totalSize, sha, err := transfer.FullFileSHA256(localPath)
	if err != nil {
		return fmt.Errorf("hash local file for upload: %w", err)
	}
	env, err := c.roundTrip("UPLOAD_REQ", envelope.UploadRequest{
		Type: "UPLOAD_REQ", ReqID: reqID, TransferID: transferID, ShareID: shareID, Path: path,
		File: envelope.FileInfo{Size: totalSize, SHA256: sha},
	})
	if err != nil {
		return err
	}
	var ack envelope.UploadAck
	if err := env.DecodeInto(&ack); err != nil {
		return fmt.Errorf("decode UPLOAD_ACK: %w", err)
	}
	if !ack.OK {
		return responseError(env)
	}
	c.state = Transfer
	_ = c.conn.SetDeadline(time.Now().Add(ControlTimeout))

	if err := transfer.SendUpload(c.w, localPath, transferID, ack.Offset, totalSize); err != nil {
		return fmt.Errorf("send upload: %w", err)
	}
	endReq := envelope.FileEnd{
		Header:     envelope.NewOK("FILE_END", reqID),
		TransferID: transferID,
		File:       &envelope.FileInfo{Size: totalSize, SHA256: sha},
	}
	b, err := envelope.Encode(endReq)
	if err != nil {
		return fmt.Errorf("encode FILE_END: %w", err)
	}
	if err := c.w.WriteFrame(wire.KindJSON, b); err != nil {
		return fmt.Errorf("write FILE_END: %w", err)
	}

	frame, err := c.r.ReadFrame()
	if err != nil {
		return fmt.Errorf("read UPLOAD_DONE: %w", err)
	}
	if frame.Kind != wire.KindJSON {
		return fmt.Errorf("read UPLOAD_DONE: unexpected binary frame")
	}
	doneEnv, err := envelope.Decode(frame.Payload)
	if err != nil {
		return fmt.Errorf("decode UPLOAD_DONE: %w", err)
	}
	var done envelope.UploadDone
	if err := doneEnv.DecodeInto(&done); err != nil {
		return fmt.Errorf("decode UPLOAD_DONE: %w", err)
	}
	if !done.OK {
		return responseError(doneEnv)
	}
	return nil
}
