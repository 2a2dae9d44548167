package redis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/adeilh/go-livescore/cache"
)

// Store implements cache.Store over RESP. Keys are namespaced with
// Options.Prefix so several services can share one database.
type Store struct {
	opts   Options
	dialFn dialFunc
	pool   chan *conn
}

type dialFunc func(context.Context, Options) (net.Conn, error)

var (
	_ cache.Store   = (*Store)(nil)
	_ cache.Clearer = (*Store)(nil)
)

// NewStore builds a Redis-backed cache store. No connection is made until
// the first command.
func NewStore(opts Options) *Store {
	cfg := opts.withDefaults()
	return &Store{opts: cfg, dialFn: defaultDial, pool: make(chan *conn, cfg.PoolSize)}
}

// WithDial replaces the dialer used for new connections.
func (s *Store) WithDial(fn dialFunc) {
	if fn != nil {
		s.dialFn = fn
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	reply, err := s.do(ctx, "GET", s.key(key))
	if err != nil {
		return nil, err
	}
	switch v := reply.(type) {
	case nil:
		return nil, cache.ErrNotFound
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("redis: GET %s: unexpected reply %T", key, reply)
	}
}

// Set stores value under key. A positive ttl is sent with millisecond
// precision and rounded up to 1ms.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := []string{"SET", s.key(key), string(value)}
	if ttl > 0 {
		args = append(args, "PX", strconv.FormatInt(max(ttl.Milliseconds(), 1), 10))
	}
	reply, err := s.do(ctx, args...)
	if err != nil {
		return err
	}
	return expectStatus(reply, "OK")
}

func (s *Store) Delete(ctx context.Context, key string) error {
	reply, err := s.do(ctx, "DEL", s.key(key))
	if err != nil {
		return err
	}
	n, ok := reply.(int64)
	if !ok {
		return fmt.Errorf("redis: DEL %s: unexpected reply %T", key, reply)
	}
	if n == 0 {
		return cache.ErrNotFound
	}
	return nil
}

// Ping checks connectivity, typically once at startup.
func (s *Store) Ping(ctx context.Context) error {
	reply, err := s.do(ctx, "PING")
	if err != nil {
		return err
	}
	return expectStatus(reply, "PONG")
}

// Clear deletes every key under the store prefix, walking the keyspace with
// SCAN so the server is never blocked. It returns how many keys went.
func (s *Store) Clear(ctx context.Context) (int, error) {
	pattern := globEscape(s.opts.Prefix) + "*"
	cursor := "0"
	removed := 0
	for {
		reply, err := s.do(ctx, "SCAN", cursor, "MATCH", pattern, "COUNT", strconv.Itoa(scanCount))
		if err != nil {
			return removed, err
		}
		next, keys, err := scanPage(reply)
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			reply, err := s.do(ctx, append([]string{"DEL"}, keys...)...)
			if err != nil {
				return removed, err
			}
			if n, ok := reply.(int64); ok {
				removed += int(n)
			}
		}
		if next == "0" {
			return removed, nil
		}
		cursor = next
	}
}

const scanCount = 100

func scanPage(reply any) (string, []string, error) {
	page, ok := reply.([]any)
	if !ok || len(page) != 2 {
		return "", nil, fmt.Errorf("redis: SCAN: unexpected reply %v", reply)
	}
	cursor, ok := page[0].([]byte)
	if !ok {
		return "", nil, fmt.Errorf("redis: SCAN: unexpected cursor %T", page[0])
	}
	items, _ := page[1].([]any)
	keys := make([]string, 0, len(items))
	for _, item := range items {
		if b, ok := item.([]byte); ok {
			keys = append(keys, string(b))
		}
	}
	return string(cursor), keys, nil
}

func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close drains and closes pooled connections.
func (s *Store) Close() error {
	for {
		select {
		case c := <-s.pool:
			_ = c.Close()
		default:
			return nil
		}
	}
}

func (s *Store) key(k string) string { return s.opts.Prefix + k }

// do runs one command on a pooled connection. Connections that fail on I/O
// are discarded; server error replies leave the connection reusable.
func (s *Store) do(ctx context.Context, args ...string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	reply, err := c.roundTrip(ctx, s.opts, args...)
	var serverErr Error
	s.release(c, err != nil && !errors.As(err, &serverErr))
	return reply, err
}

func (s *Store) acquire(ctx context.Context) (*conn, error) {
	select {
	case c := <-s.pool:
		return c, nil
	default:
	}

	dial := s.dialFn
	if dial == nil {
		dial = defaultDial
	}
	nc, err := dial(ctx, s.opts)
	if err != nil {
		return nil, err
	}
	c := &conn{Conn: nc, r: bufio.NewReader(nc)}
	if err := s.handshake(ctx, c); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (s *Store) release(c *conn, broken bool) {
	if broken {
		_ = c.Close()
		return
	}
	select {
	case s.pool <- c:
	default:
		_ = c.Close()
	}
}

func (s *Store) handshake(ctx context.Context, c *conn) error {
	var cmds [][]string
	if s.opts.Password != "" {
		cmds = append(cmds, []string{"AUTH", s.opts.Password})
	}
	if s.opts.DB > 0 {
		cmds = append(cmds, []string{"SELECT", strconv.Itoa(s.opts.DB)})
	}
	for _, cmd := range cmds {
		reply, err := c.roundTrip(ctx, s.opts, cmd...)
		if err != nil {
			return fmt.Errorf("redis: %s: %w", cmd[0], err)
		}
		if err := expectStatus(reply, "OK"); err != nil {
			return err
		}
	}
	return nil
}

type conn struct {
	net.Conn
	r *bufio.Reader
}

func (c *conn) roundTrip(ctx context.Context, opts Options, args ...string) (any, error) {
	if err := c.SetWriteDeadline(deadline(ctx, opts.WriteTimeout)); err != nil {
		return nil, err
	}
	if _, err := c.Write(encodeCommand(args...)); err != nil {
		return nil, err
	}
	if err := c.SetReadDeadline(deadline(ctx, opts.ReadTimeout)); err != nil {
		return nil, err
	}
	return decodeRESP(c.r)
}

// deadline picks the earlier of the context deadline and now+timeout.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if cd, ok := ctx.Deadline(); ok && (d.IsZero() || cd.Before(d)) {
		d = cd
	}
	return d
}

func defaultDial(ctx context.Context, opts Options) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: opts.DialTimeout}
	return dialer.DialContext(ctx, "tcp", opts.Addr)
}
