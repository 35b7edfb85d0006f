package connector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/hostkit/internal/logger"
	"github.com/marmos91/hostkit/internal/telemetry"
	"github.com/marmos91/hostkit/pkg/bufpool"
	"github.com/marmos91/hostkit/pkg/workers"
)

// DefaultBufferSize is the largest datagram read when UDPConfig leaves
// BufferSize unset.
const DefaultBufferSize = 64 << 10

// udpReadTimeout bounds each blocking read so the loop notices shutdown.
const udpReadTimeout = 500 * time.Millisecond

// Packet is one received datagram. Data is only valid until AcceptPacket
// returns; listeners that keep it must copy it.
type Packet struct {
	Data       []byte
	Peer       *net.UDPAddr
	ReceivedAt time.Time
}

// PacketListener consumes datagrams received by the UDP listener.
type PacketListener interface {
	AcceptPacket(ctx context.Context, pkt Packet) error
}

// PacketListenerFunc adapts a function to PacketListener.
type PacketListenerFunc func(ctx context.Context, pkt Packet) error

func (f PacketListenerFunc) AcceptPacket(ctx context.Context, pkt Packet) error {
	return f(ctx, pkt)
}

// UDPConfig configures the UDP listener.
type UDPConfig struct {
	// Address to bind. A multicast group address joins the group on
	// Interface (or the system default).
	Address string
	Port    int

	Interface string

	// BufferSize is the largest datagram accepted. Longer ones are
	// truncated by the kernel.
	BufferSize int
}

// UDPStats reports datagram counters.
type UDPStats struct {
	Received uint64
	Dropped  uint64
}

// UDPListener owns one UDP socket read by one goroutine. Every datagram is
// dispatched to all packet listeners through the shared worker pool.
type UDPListener struct {
	cfg       UDPConfig
	listeners []PacketListener
	pool      *workers.Pool
	bufs      *bufpool.Pool

	startOnce sync.Once
	ready     chan struct{}
	failed    chan struct{}
	bindErr   error

	connMu sync.Mutex
	conn   *net.UDPConn

	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup

	received atomic.Uint64
	dropped  atomic.Uint64
}

// NewUDPListener creates a listener. Nothing is bound until Start.
func NewUDPListener(cfg UDPConfig, listeners []PacketListener, pool *workers.Pool) *UDPListener {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	return &UDPListener{
		cfg:       cfg,
		listeners: listeners,
		pool:      pool,
		bufs:      bufpool.New(cfg.BufferSize),
		ready:     make(chan struct{}),
		failed:    make(chan struct{}),
		shutdown:  make(chan struct{}),
	}
}

// Start launches the socket goroutine. It returns immediately; use
// CheckStarted to learn whether the bind succeeded.
func (u *UDPListener) Start() {
	u.startOnce.Do(func() {
		u.wg.Add(1)
		go u.run()
	})
}

// CheckStarted starts the listener if needed and blocks until the socket
// is bound, the bind failed, or ctx is done.
func (u *UDPListener) CheckStarted(ctx context.Context) error {
	u.Start()
	select {
	case <-u.ready:
		return nil
	case <-u.failed:
		return u.bindErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the bound address, or nil when not bound.
func (u *UDPListener) Addr() *net.UDPAddr {
	u.connMu.Lock()
	defer u.connMu.Unlock()
	if u.conn == nil {
		return nil
	}
	addr, _ := u.conn.LocalAddr().(*net.UDPAddr)
	return addr
}

// Endpoint is the configured address and port, for error messages.
func (u *UDPListener) Endpoint() string {
	return net.JoinHostPort(u.cfg.Address, strconv.Itoa(u.cfg.Port))
}

func (u *UDPListener) Stats() UDPStats {
	return UDPStats{Received: u.received.Load(), Dropped: u.dropped.Load()}
}

// Shutdown closes the socket and waits for the read goroutine. It is
// idempotent and safe on a listener that never started or failed to bind.
func (u *UDPListener) Shutdown() {
	u.shutdownOnce.Do(func() {
		close(u.shutdown)

		u.connMu.Lock()
		if u.conn != nil {
			_ = u.conn.Close()
		}
		u.connMu.Unlock()
	})
	u.wg.Wait()
}

func (u *UDPListener) bind() (*net.UDPConn, error) {
	ip := net.ParseIP(u.cfg.Address)
	if u.cfg.Address != "" && ip == nil {
		ips, err := net.LookupIP(u.cfg.Address)
		if err != nil || len(ips) == 0 {
			return nil, fmt.Errorf("resolve %s: %w", u.cfg.Address, err)
		}
		ip = ips[0]
	}
	addr := &net.UDPAddr{IP: ip, Port: u.cfg.Port}

	if ip != nil && ip.IsMulticast() {
		var ifi *net.Interface
		if u.cfg.Interface != "" {
			var err error
			ifi, err = net.InterfaceByName(u.cfg.Interface)
			if err != nil {
				return nil, fmt.Errorf("interface %s: %w", u.cfg.Interface, err)
			}
		}
		return net.ListenMulticastUDP("udp", ifi, addr)
	}
	return net.ListenUDP("udp", addr)
}

func (u *UDPListener) run() {
	defer u.wg.Done()

	conn, err := u.bind()
	if err != nil {
		u.bindErr = err
		close(u.failed)
		logger.Error("UDP listener bind failed",
			logger.KeyAddress, u.Endpoint(), logger.KeyError, err)
		return
	}

	u.connMu.Lock()
	select {
	case <-u.shutdown:
		// Shutdown won the race with bind.
		u.connMu.Unlock()
		_ = conn.Close()
		u.bindErr = errors.New("udp listener shut down before start")
		close(u.failed)
		return
	default:
	}
	u.conn = conn
	u.connMu.Unlock()

	if err := conn.SetReadBuffer(u.cfg.BufferSize); err != nil {
		logger.Debug("UDP listener could not size read buffer", logger.KeyError, err)
	}

	close(u.ready)
	logger.Info("UDP listener started",
		logger.KeyAddress, conn.LocalAddr().String(),
		logger.KeyCount, len(u.listeners))

	u.serve(conn)
}

func (u *UDPListener) serve(conn *net.UDPConn) {
	buf := u.bufs.Get(u.bufs.MaxSize())
	defer u.bufs.Put(buf)

	for {
		select {
		case <-u.shutdown:
			logger.Info("UDP listener stopped")
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(udpReadTimeout)); err != nil {
			select {
			case <-u.shutdown:
				return
			default:
				logger.Debug("UDP set read deadline error", logger.KeyError, err)
				continue
			}
		}

		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue // Normal timeout, check shutdown and retry
			}
			select {
			case <-u.shutdown:
				return
			default:
				logger.Debug("UDP read error", logger.KeyError, err)
				continue
			}
		}

		u.received.Add(1)
		u.dispatch(Packet{Data: u.bufs.Clone(buf[:n]), Peer: peer, ReceivedAt: time.Now()})
	}
}

func (u *UDPListener) dispatch(pkt Packet) {
	if len(u.listeners) == 0 {
		u.bufs.Put(pkt.Data)
		return
	}

	err := u.pool.Submit(func(ctx context.Context) error {
		defer u.bufs.Put(pkt.Data)

		peer := pkt.Peer.String()
		ctx, span := telemetry.StartPacketSpan(ctx, peer, len(pkt.Data))
		defer span.End()

		for _, l := range u.listeners {
			u.deliver(ctx, l, pkt, peer)
		}
		return nil
	})
	if err != nil {
		u.dropped.Add(1)
		u.bufs.Put(pkt.Data)
		logger.Debug("UDP datagram dropped", logger.KeyClientIP, pkt.Peer.String(), logger.KeyError, err)
	}
}

// deliver isolates one listener so a failure or panic never reaches the
// others.
func (u *UDPListener) deliver(ctx context.Context, l PacketListener, pkt Packet, peer string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Packet listener panic", logger.KeyClientIP, peer, logger.KeyPanic, r)
		}
	}()

	if err := l.AcceptPacket(ctx, pkt); err != nil {
		logger.Warn("Packet listener failed", logger.KeyClientIP, peer, logger.KeyError, err)
	}
}
