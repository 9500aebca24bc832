package envelope

// HelloRequest is the client's opening message.
type HelloRequest struct {
	Type       string `json:"type"`
	ReqID      string `json:"reqId"`
	Proto      string `json:"proto"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	Auth       string `json:"auth"`
}

// HelloAck is the server's reply to HELLO.
type HelloAck struct {
	Header
	ServerID     string   `json:"serverId,omitempty"`
	Nonce        string   `json:"nonce,omitempty"`
	Auth         []string `json:"auth,omitempty"`
	AuthRequired bool     `json:"authRequired,omitempty"`
	SelectedAuth string   `json:"selectedAuth,omitempty"`
}

// AuthRequest carries the client's challenge response.
type AuthRequest struct {
	Type        string `json:"type"`
	ReqID       string `json:"reqId"`
	ClientNonce string `json:"clientNonce"`
	MAC         string `json:"mac"`
}

// AuthOK is the server's reply to AUTH.
type AuthOK struct {
	Header
}

// PingRequest/PongResponse implement a liveness round-trip.
type PingRequest struct {
	Type  string `json:"type"`
	ReqID string `json:"reqId"`
}

type PongResponse struct {
	Header
}

// ListSharesRequest has no fields beyond the common envelope.
type ListSharesRequest struct {
	Type  string `json:"type"`
	ReqID string `json:"reqId"`
}

// ShareView is the wire shape of one share as returned by LIST_SHARES.
type ShareView struct {
	ShareID  string `json:"shareId"`
	Name     string `json:"name"`
	ReadOnly bool   `json:"readOnly"`
}

type ListSharesResponse struct {
	Header
	Shares []ShareView `json:"shares,omitempty"`
}

// ListDirRequest asks for the immediate children of a directory.
type ListDirRequest struct {
	Type    string `json:"type"`
	ReqID   string `json:"reqId"`
	ShareID string `json:"shareId"`
	Path    string `json:"path"`
}

// DirEntry is one child returned by LIST_DIR_RESP.
type DirEntry struct {
	Name     string `json:"name"`
	IsDir    bool   `json:"isDir"`
	Size     int64  `json:"size,omitempty"`
	MtimeUTC string `json:"mtimeUtc,omitempty"`
}

type ListDirResponse struct {
	Header
	Entries []DirEntry `json:"entries,omitempty"`
}

// StatRequest asks for metadata about a single file.
type StatRequest struct {
	Type    string `json:"type"`
	ReqID   string `json:"reqId"`
	ShareID string `json:"shareId"`
	Path    string `json:"path"`
}

// FileStat is the {size, mtimeUtc, sha256} object returned by STAT_RESP.
type FileStat struct {
	Size     int64  `json:"size"`
	MtimeUTC string `json:"mtimeUtc"`
	SHA256   string `json:"sha256"`
}

type StatResponse struct {
	Header
	Stat *FileStat `json:"stat,omitempty"`
}

// DownloadRequest initiates a download.
type DownloadRequest struct {
	Type       string `json:"type"`
	ReqID      string `json:"reqId"`
	TransferID string `json:"transferId"`
	ShareID    string `json:"shareId"`
	Path       string `json:"path"`
	Offset     int64  `json:"offset"`
}

// FileInfo is the {size, sha256} pair attached to DOWNLOAD_ACK/FILE_END.
type FileInfo struct {
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

type DownloadAck struct {
	Header
	File   *FileInfo `json:"file,omitempty"`
	Offset int64     `json:"offset,omitempty"`
}

// FileChunk is the JSON header preceding each binary transfer frame.
type FileChunk struct {
	Type       string `json:"type"`
	TransferID string `json:"transferId"`
	Offset     int64  `json:"offset"`
	Length     int32  `json:"length"`
}

// FileEnd closes out a download; sent by the server.
type FileEnd struct {
	Header
	TransferID string    `json:"transferId,omitempty"`
	File       *FileInfo `json:"file,omitempty"`
}

// UploadRequest initiates an upload.
type UploadRequest struct {
	Type       string   `json:"type"`
	ReqID      string   `json:"reqId"`
	TransferID string   `json:"transferId"`
	ShareID    string   `json:"shareId"`
	Path       string   `json:"path"`
	File       FileInfo `json:"file"`
}

type UploadAck struct {
	Header
	Offset int64 `json:"offset,omitempty"`
}

// UploadDone closes out an upload; sent by the server.
type UploadDone struct {
	Header
	TransferID string `json:"transferId,omitempty"`
}

// HashRangeRequest/HashRangeResponse implement the reserved HASH_REQ /
// HASH_RESP range-hash operation: defined on the wire but gated behind
// Server.EnableHashOp, off by default.
type HashRangeRequest struct {
	Type    string `json:"type"`
	ReqID   string `json:"reqId"`
	ShareID string `json:"shareId"`
	Path    string `json:"path"`
	Offset  int64  `json:"offset"`
	Length  int64  `json:"length"`
}

type HashRangeResponse struct {
	Header
	SHA256 string `json:"sha256,omitempty"`
}
