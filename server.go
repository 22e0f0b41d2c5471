/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
)

// ErrServerClosed is returned by Server.Serve after Shutdown.
const ErrServerClosed = Error("ircd: server closed")

// keepAliveTimeout sets the TCP keep-alive interval on accepted sockets.
const keepAliveTimeout = 2 * time.Minute

// shutdownGrace bounds how long Shutdown waits for sessions to drain their
// outbound queues before hard-closing (spec.md section 5's cancellation
// policy).
const shutdownGrace = 5 * time.Second

// Server ties the Store, Dispatcher, and configured network bindings
// together, generalizing the teacher's Server/NewServer/ListenAndServe
// family with a functional-options constructor and a conc-based worker
// pool bounding concurrent session goroutines (spec.md section 5).
type Server struct {
	cfg        *Config
	store      *Store
	dispatcher *Dispatcher
	creds      *CredentialStore

	log *logrus.Entry

	listeners []net.Listener
	wsServers []*wsServer

	wg          *conc.WaitGroup
	sessionPool *pool.Pool
	shutdown    chan struct{}
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithLogger sets the logrus logger used for all server/session logging.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Server) { s.log = logger.WithField("component", "ircd") }
}

// WithCredentialStore wires a credential store for SASL PLAIN.
func WithCredentialStore(store *CredentialStore) Option {
	return func(s *Server) { s.creds = store }
}

// NewServer builds a Server from cfg. Call Serve to begin accepting
// connections on the configured bindings.
func NewServer(cfg *Config, opts ...Option) *Server {
	srv := &Server{
		cfg:      cfg,
		store:    NewStore(cfg),
		wg:       conc.NewWaitGroup(),
		shutdown: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.log == nil {
		l := logrus.New()
		srv.log = l.WithField("component", "ircd")
	}
	srv.dispatcher = NewDispatcher(srv.log)
	registerHandlers(srv.dispatcher)
	return srv
}

// Store exposes the server's Store, mainly for tests.
func (srv *Server) Store() *Store { return srv.store }

// Rehash re-reads cfgPath and atomically swaps the mutable limits/MOTD/oper
// table (spec.md section 5's REHASH).
func (srv *Server) Rehash(cfgPath string) error {
	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	srv.store.Rehash(cfg)
	srv.log.Info("configuration reloaded")
	return nil
}

// Serve binds every configured listener and blocks, using a bounded
// goroutine pool (github.com/sourcegraph/conc/pool) to run sessions so a
// connection storm cannot unboundedly spawn goroutines (spec.md section 5).
func (srv *Server) Serve() error {
	workers := srv.cfg.Workers
	if workers <= 0 {
		workers = 256
	}
	srv.sessionPool = pool.New().WithMaxGoroutines(workers)

	for _, b := range srv.cfg.Bindings {
		b := b
		if b.WebSocket {
			ws, err := newWSServer(srv, b)
			if err != nil {
				return err
			}
			srv.wsServers = append(srv.wsServers, ws)
			srv.wg.Go(func() { ws.serve() })
			continue
		}

		listener, err := srv.bind(b)
		if err != nil {
			return err
		}
		srv.listeners = append(srv.listeners, listener)

		srv.wg.Go(func() { srv.acceptLoop(listener, b.TLS) })
	}

	<-srv.shutdown
	srv.sessionPool.Wait()
	return ErrServerClosed
}

func (srv *Server) bind(b BindingConfig) (net.Listener, error) {
	tcp, err := net.Listen("tcp", b.Address)
	if err != nil {
		return nil, err
	}
	listener := tcpKeepAliveListener{tcp.(*net.TCPListener)}

	if !b.TLS {
		return listener, nil
	}

	tlsCfg, err := buildTLSConfig(b)
	if err != nil {
		return nil, err
	}
	return tls.NewListener(listener, tlsCfg), nil
}

func (srv *Server) acceptLoop(listener net.Listener, isTLS bool) {
	defer listener.Close()

	var tempDelay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-srv.shutdown:
				return
			default:
			}
			if neterr, ok := err.(net.Error); ok && neterr.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if tempDelay > time.Second {
					tempDelay = time.Second
				}
				srv.log.WithError(err).Warn("accept error, retrying")
				time.Sleep(tempDelay)
				continue
			}
			srv.log.WithError(err).Error("listener closed")
			return
		}
		tempDelay = 0

		conn := conn
		srv.sessionPool.Go(func() {
			sess := newSession(srv, srv.store, conn, conn.RemoteAddr(), isTLS)
			sess.run()
		})
	}
}

// Shutdown stops accepting new connections, asks active sessions to
// disconnect their clients gracefully, and waits up to shutdownGrace before
// returning.
func (srv *Server) Shutdown(ctx context.Context) error {
	close(srv.shutdown)
	for _, l := range srv.listeners {
		l.Close()
	}
	for _, ws := range srv.wsServers {
		ws.close()
	}

	var clients []*Client
	srv.store.ForEachClient(func(c *Client) { clients = append(clients, c) })
	for _, c := range clients {
		c.Kill(QuitServerShutdown.String())
	}

	done := make(chan struct{})
	go func() {
		srv.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(shutdownGrace):
		return nil
	}
}

// tcpKeepAliveListener sets TCP keep-alive timeouts on accepted
// connections, so dead peers eventually go away.
type tcpKeepAliveListener struct {
	*net.TCPListener
}

func (l tcpKeepAliveListener) Accept() (net.Conn, error) {
	conn, err := l.AcceptTCP()
	if err != nil {
		return nil, err
	}
	conn.SetKeepAlive(true)
	conn.SetKeepAlivePeriod(keepAliveTimeout)
	return conn, nil
}
