package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Aman-CERP/catindex/internal/logging"
)

// Listener accepts producer connections on a Unix socket and publishes
// every envelope it reads to a Bus. Each connection carries a stream of
// CBOR envelopes and is closed by the producer.
type Listener struct {
	socketPath  string
	bus         *Bus
	logger      *slog.Logger
	idleTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	shutdown bool
	wg       sync.WaitGroup
	ready    chan struct{}
}

// NewListener creates a listener for socketPath feeding bus.
func NewListener(socketPath string, bus *Bus, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Listener{
		socketPath:  socketPath,
		bus:         bus,
		logger:      logger,
		idleTimeout: 5 * time.Minute,
		ready:       make(chan struct{}),
	}
}

// Ready is closed once the socket accepts connections.
func (l *Listener) Ready() <-chan struct{} {
	return l.ready
}

// ListenAndServe blocks until ctx is cancelled.
func (l *Listener) ListenAndServe(ctx context.Context) error {
	_ = os.Remove(l.socketPath)

	ln, err := net.Listen("unix", l.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.socketPath, err)
	}
	l.mu.Lock()
	l.listener = ln
	l.mu.Unlock()
	close(l.ready)

	defer func() {
		_ = ln.Close()
		_ = os.Remove(l.socketPath)
	}()

	l.logger.Info("events_listening", slog.String("socket", l.socketPath))

	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			l.mu.Lock()
			shutdown := l.shutdown
			l.mu.Unlock()
			if shutdown {
				break
			}
			l.logger.Error("events_accept_failed", slog.String("error", err.Error()))
			continue
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.serve(ctx, conn)
		}()
	}

	l.wg.Wait()
	return ctx.Err()
}

// serve reads envelopes until EOF, a decode error or shutdown.
func (l *Listener) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	dec := NewDecoder(conn)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(l.idleTimeout))

		var env Envelope
		if err := dec.Decode(&env); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				l.logger.Warn("events_stream_closed", slog.String("error", err.Error()))
			}
			return
		}
		l.bus.Publish(ctx, env)
	}
}

// Close stops accepting connections.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shutdown = true
	if l.listener != nil {
		return l.listener.Close()
	}
	return nil
}

// Send writes envelopes to the events socket at socketPath.
func Send(ctx context.Context, socketPath string, envs ...Envelope) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to connect to events socket: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	enc := NewEncoder(conn)
	for _, env := range envs {
		if err := enc.Encode(env); err != nil {
			return fmt.Errorf("failed to send event %s: %w", env.Name, err)
		}
	}
	return nil
}
