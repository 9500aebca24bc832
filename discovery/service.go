package discovery

import (
	"fmt"
	"net"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"github.com/bytedance/sonic"
	"golang.org/x/time/rate"

	"netshare/logging"
	"netshare/peerdir"
)

// AnnounceInterval and dedupTTL are the announce cadence and the query
// dedup window.
const (
	AnnounceInterval = 2000 * time.Millisecond
	dedupTTL         = 5 * time.Second
	readBufferSize   = 8 * 1024
)

// Self describes the local node as advertised in ANNOUNCE/RESPONSE
// datagrams and used for the discovery self-filter.
type Self struct {
	DeviceID      string
	DeviceName    string
	Proto         string
	TCPPort       int
	DiscoveryPort int
	Capability    Capability
}

// Service runs the announce and listen loops on one UDP socket: two
// cooperating tasks bound to a single socket.
type Service struct {
	self             Self
	dir              *peerdir.Directory
	broadcastAddr    string
	respondToQueries bool // explicit capability flag, never inferred from other config

	conn *net.UDPConn

	errLimiter *rate.Limiter
	seenQuery  *ttlworker.Cache[string, bool]
}

// Options configures a Service beyond the required Self/Directory.
type Options struct {
	BroadcastAddr    string // defaults to 255.255.255.255
	RespondToQueries bool
}

// New constructs a discovery Service bound to self.DiscoveryPort.
// RespondToQueries decides whether this node answers QUERY datagrams
// with a unicast RESPONSE; a listener-only monitor sets this false
// explicitly rather than have it inferred from other configuration.
func New(self Self, dir *peerdir.Directory, opts Options) *Service {
	addr := opts.BroadcastAddr
	if addr == "" {
		addr = "255.255.255.255"
	}
	return &Service{
		self:             self,
		dir:              dir,
		broadcastAddr:    addr,
		respondToQueries: opts.RespondToQueries,
		errLimiter:       rate.NewLimiter(rate.Every(30*time.Second), 1),
		seenQuery:        ttlworker.NewCache[string, bool](dedupTTL),
	}
}

// bind opens the shared UDP socket. Broadcast is enabled by Go's
// default UDP socket options; address reuse (SO_REUSEADDR) is not set.
func (s *Service) bind(bindAddr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", bindAddr, s.self.DiscoveryPort))
	if err != nil {
		return fmt.Errorf("resolve discovery bind address: %w", err)
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return fmt.Errorf("listen udp discovery: %w", err)
	}
	s.conn = conn
	return nil
}

// Run binds the socket and runs the announce and listen loops until
// stop is closed. It blocks until both loops exit.
func (s *Service) Run(bindAddr string, stop <-chan struct{}) error {
	if err := s.bind(bindAddr); err != nil {
		return err
	}
	defer s.conn.Close()

	done := make(chan struct{}, 2)
	go func() { s.announceLoop(stop); done <- struct{}{} }()
	go func() { s.listenLoop(stop); done <- struct{}{} }()
	<-done
	<-done
	return nil
}

// SendQuery emits one QUERY datagram to prompt immediate RESPONSE from
// already-running peers, for use at startup instead of waiting out a
// full announce interval.
func (s *Service) SendQuery() error {
	msg := Message{
		Proto:        s.self.Proto,
		Type:         TypeQuery,
		TimestampUTC: nowUTC(),
	}
	return s.send(msg, s.broadcastTarget())
}

func (s *Service) announceLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(AnnounceInterval)
	defer ticker.Stop()
	s.announceOnce()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.announceOnce()
		}
	}
}

func (s *Service) announceOnce() {
	msg := s.announceMessage(TypeAnnounce)
	if err := s.send(msg, s.broadcastTarget()); err != nil {
		s.logThrottled("announce send failed: %v", err)
	}
}

func (s *Service) announceMessage(t MessageType) Message {
	return Message{
		Proto:         s.self.Proto,
		Type:          t,
		DeviceID:      s.self.DeviceID,
		DeviceName:    s.self.DeviceName,
		TCPPort:       s.self.TCPPort,
		DiscoveryPort: s.self.DiscoveryPort,
		TimestampUTC:  nowUTC(),
		Capability:    &s.self.Capability,
	}
}

func (s *Service) broadcastTarget() *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(s.broadcastAddr), Port: s.self.DiscoveryPort}
}

func (s *Service) send(msg Message, to *net.UDPAddr) error {
	payload, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal discovery message: %w", err)
	}
	_, err = s.conn.WriteToUDP(payload, to)
	return err
}

func (s *Service) listenLoop(stop <-chan struct{}) {
	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-stop:
			return
		default:
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			s.logThrottled("discovery read failed: %v", err)
			continue
		}
		s.handleDatagram(buf[:n], from)
	}
}

func (s *Service) handleDatagram(data []byte, from *net.UDPAddr) {
	var msg Message
	if err := sonic.Unmarshal(data, &msg); err != nil {
		s.logThrottled("discovery decode failed: %v", err)
		return
	}
	if msg.Proto != s.self.Proto {
		return
	}
	switch msg.Type {
	case TypeAnnounce, TypeResponse:
		if msg.DeviceID == "" || msg.DeviceID == s.self.DeviceID {
			return // self-filter
		}
		s.dir.Upsert(peerdir.Peer{
			DeviceID:      msg.DeviceID,
			DeviceName:    msg.DeviceName,
			Address:       from.IP.String(),
			TCPPort:       msg.TCPPort,
			DiscoveryPort: msg.DiscoveryPort,
			LastSeenUTC:   time.Now().UTC(),
		})
	case TypeQuery:
		if !s.respondToQueries {
			return
		}
		key := from.String()
		if s.seenQuery.Get(key) {
			return
		}
		s.seenQuery.Set(key, true)
		resp := s.announceMessage(TypeResponse)
		if err := s.send(resp, from); err != nil {
			s.logThrottled("discovery response send failed: %v", err)
		}
	}
}

func (s *Service) logThrottled(format string, args ...any) {
	if s.errLimiter.Allow() {
		logging.Default().Warnf(format, args...)
	}
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
