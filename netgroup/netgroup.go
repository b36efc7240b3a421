// Package netgroup implements a group.Transport over TCP. Every rank runs a
// lumberjack v2 server on its own address and reaches its peers through
// synchronous lumberjack clients, so each Send returns once the peer has
// acknowledged the event.
package netgroup

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	v2 "github.com/elastic/go-lumber/client/v2"
	srv2 "github.com/elastic/go-lumber/server/v2"
	"github.com/pkg/errors"
	"github.com/toolkits/pkg/logger"

	"github.com/ChristianF88/pradix/group"
)

const (
	DefaultDialTimeout = 30 * time.Second
	DefaultReadTimeout = 5 * time.Minute

	dialBackoff  = 50 * time.Millisecond
	abortTimeout = 2 * time.Second
)

var (
	ErrInvalidConfig = errors.New("invalid process group config")
	ErrClosed        = errors.New("transport closed")
)

// Config describes one member of a TCP process group.
type Config struct {
	Rank  int
	Peers []string // listen address of every rank, indexed by rank
	// DialTimeout bounds how long a Send waits for a peer to come up.
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

func (c *Config) Validate() error {
	if len(c.Peers) == 0 {
		return errors.Wrap(ErrInvalidConfig, "no peers")
	}
	if c.Rank < 0 || c.Rank >= len(c.Peers) {
		return errors.Wrapf(ErrInvalidConfig, "rank %d outside group of %d", c.Rank, len(c.Peers))
	}
	for i, p := range c.Peers {
		if p == "" {
			return errors.Wrapf(ErrInvalidConfig, "empty address for rank %d", i)
		}
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	return nil
}

// LogWriter forwards the lumberjack server's standard library log lines to
// logf. Install it with log.SetOutput.
type LogWriter func(format string, args ...interface{})

func (w LogWriter) Write(p []byte) (int, error) {
	if line := strings.TrimRight(string(p), "\n"); line != "" {
		w("lumberjack: %s", line)
	}
	return len(p), nil
}

// Transport is one rank's endpoint in a TCP process group.
type Transport struct {
	cfg      Config
	listener net.Listener
	server   *srv2.Server
	box      *group.Mailbox
	peers    []*peer
	done     chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

type peer struct {
	mu     sync.Mutex
	addr   string
	client *v2.SyncClient
}

// Dial listens on this rank's address and returns a Comm for the group.
// Peers are dialed lazily on first Send.
func Dial(cfg Config) (*group.Comm, error) {
	t, err := Listen(cfg)
	if err != nil {
		return nil, err
	}
	return group.NewComm(t), nil
}

// Listen binds the rank's address from cfg.Peers and starts receiving.
func Listen(cfg Config) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", cfg.Peers[cfg.Rank])
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", cfg.Peers[cfg.Rank])
	}
	return NewWithListener(cfg, ln)
}

// NewWithListener serves the rank on an existing listener.
func NewWithListener(cfg Config, ln net.Listener) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	srv, err := srv2.NewWithListener(ln,
		srv2.Timeout(cfg.ReadTimeout),
		srv2.JSONDecoder(json.Unmarshal),
	)
	if err != nil {
		ln.Close()
		return nil, errors.Wrap(err, "failed to create lumberjack server")
	}

	t := &Transport{
		cfg:      cfg,
		listener: ln,
		server:   srv,
		box:      group.NewMailbox(),
		peers:    make([]*peer, len(cfg.Peers)),
		done:     make(chan struct{}),
		closed:   make(chan struct{}),
	}
	for i, addr := range cfg.Peers {
		t.peers[i] = &peer{addr: addr}
	}
	go t.receive()
	return t, nil
}

// Addr returns the address the rank listens on.
func (t *Transport) Addr() net.Addr { return t.listener.Addr() }

func (t *Transport) Rank() int { return t.cfg.Rank }
func (t *Transport) Size() int { return len(t.cfg.Peers) }

func (t *Transport) receive() {
	defer close(t.done)
	for batch := range t.server.ReceiveChan() {
		for _, evt := range batch.Events {
			fields, ok := evt.(map[string]interface{})
			if !ok {
				logger.Warningf("rank %d: dropping event of type %T", t.cfg.Rank, evt)
				continue
			}
			m, err := decodeEvent(fields)
			if err != nil {
				logger.Warningf("rank %d: %v", t.cfg.Rank, err)
				continue
			}
			if m.Kind == group.KindAbort {
				t.box.Abort(errors.New(m.Reason))
				continue
			}
			if err := t.box.Deliver(context.Background(), m); err != nil {
				logger.Debugf("rank %d: dropping message from rank %d: %v", t.cfg.Rank, m.From, err)
			}
		}
		batch.ACK()
	}
}

func (t *Transport) Send(ctx context.Context, to int, m group.Message) error {
	if to < 0 || to >= t.Size() {
		return errors.Wrapf(group.ErrInvalidRank, "rank %d of %d", to, t.Size())
	}
	if err := t.box.Err(); err != nil {
		return err
	}
	m.From = t.cfg.Rank
	if to == t.cfg.Rank {
		return t.box.Deliver(ctx, m)
	}
	return t.send(ctx, to, encodeEvent(m))
}

func (t *Transport) Recv(ctx context.Context, from int, tag uint64) (group.Message, error) {
	if from < 0 || from >= t.Size() {
		return group.Message{}, errors.Wrapf(group.ErrInvalidRank, "rank %d of %d", from, t.Size())
	}
	select {
	case <-t.closed:
		return group.Message{}, ErrClosed
	default:
	}
	return t.box.Recv(ctx, from, tag)
}

// Abort fails the local mailbox and tells every reachable peer to do the
// same. Peers that cannot be reached within a short timeout are skipped.
func (t *Transport) Abort(cause error) {
	reason := "aborted"
	if cause != nil {
		reason = cause.Error()
	}
	if !t.box.Abort(cause) {
		return
	}
	logger.Errorf("rank %d: aborting process group: %s", t.cfg.Rank, reason)

	ctx, cancel := context.WithTimeout(context.Background(), abortTimeout)
	defer cancel()
	evt := encodeEvent(group.Message{Kind: group.KindAbort, From: t.cfg.Rank, Reason: reason})

	var wg sync.WaitGroup
	for r := range t.peers {
		if r == t.cfg.Rank {
			continue
		}
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			if err := t.send(ctx, r, evt); err != nil {
				logger.Warningf("rank %d: abort not delivered to rank %d: %v", t.cfg.Rank, r, err)
			}
		}(r)
	}
	wg.Wait()
}

// Close shuts down the server and all peer connections.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		for _, p := range t.peers {
			p.close()
		}
		err = t.server.Close()
		<-t.done
	})
	return err
}

// send delivers one event to rank r. A broken connection is redialed once,
// since the peer's server drops idle connections after its read timeout.
func (t *Transport) send(ctx context.Context, r int, evt map[string]interface{}) error {
	p := t.peers[r]
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if p.client == nil {
			if err = p.dial(ctx, t.cfg.DialTimeout, t.cfg.ReadTimeout, t.closed); err != nil {
				return err
			}
		}
		if _, err = p.client.Send([]interface{}{evt}); err == nil {
			return nil
		}
		p.client.Close()
		p.client = nil
	}
	return errors.Wrapf(err, "send to rank %d at %s", r, p.addr)
}

// dial retries until the peer accepts or the dial timeout passes; peers of
// a freshly launched group come up in no particular order.
func (p *peer) dial(ctx context.Context, timeout, ioTimeout time.Duration, closed <-chan struct{}) error {
	deadline := time.Now().Add(timeout)
	for {
		c, err := v2.SyncDial(p.addr,
			v2.Timeout(ioTimeout),
			v2.JSONEncoder(json.Marshal),
		)
		if err == nil {
			p.client = c
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Wrapf(err, "dial %s", p.addr)
		}
		select {
		case <-time.After(dialBackoff):
		case <-ctx.Done():
			return ctx.Err()
		case <-closed:
			return ErrClosed
		}
	}
}

func (p *peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}
