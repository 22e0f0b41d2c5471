/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
)

// wsServer exposes the optional WebSocket binding described in spec.md
// section 6: one path upgrading to WebSocket, each text frame carrying one
// or more CRLF-terminated IRC lines (the Open Question's resolution: one
// line per text frame is what this server writes, and what it expects to
// read, per frame, on the inbound side).
type wsServer struct {
	srv      *Server
	binding  BindingConfig
	http     *http.Server
	listener net.Listener
}

func newWSServer(srv *Server, b BindingConfig) (*wsServer, error) {
	listener, err := net.Listen("tcp", b.Address)
	if err != nil {
		return nil, err
	}

	ws := &wsServer{srv: srv, binding: b, listener: listener}
	mux := http.NewServeMux()
	mux.HandleFunc("/", ws.handle)
	ws.http = &http.Server{Handler: mux}

	if b.TLS {
		tlsCfg, err := buildTLSConfig(b)
		if err != nil {
			listener.Close()
			return nil, err
		}
		ws.http.TLSConfig = tlsCfg
	}
	return ws, nil
}

func (ws *wsServer) serve() {
	var err error
	if ws.binding.TLS {
		err = ws.http.ServeTLS(ws.listener, "", "")
	} else {
		err = ws.http.Serve(ws.listener)
	}
	if err != nil && err != http.ErrServerClosed {
		ws.srv.log.WithError(err).Error("websocket listener stopped")
	}
}

func (ws *wsServer) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	ws.http.Shutdown(ctx)
}

func (ws *wsServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{"text.ircv3.net"},
	})
	if err != nil {
		return
	}

	adapted := &wsLineConn{conn: conn, ctx: r.Context()}
	sess := newSession(ws.srv, ws.srv.store, adapted, wsRemoteAddr(r), ws.binding.TLS)
	sess.run()
}

func wsRemoteAddr(r *http.Request) net.Addr {
	host := r.RemoteAddr
	if host == "" {
		host = "websocket"
	}
	return wsAddr(host)
}

type wsAddr string

func (a wsAddr) Network() string { return "websocket" }
func (a wsAddr) String() string  { return string(a) }

// wsLineConn adapts a *websocket.Conn to io.ReadWriteCloser, speaking one
// IRC line per text frame in both directions, so Session can drive it with
// the same bufio.Scanner-based read loop it uses for TCP/TLS.
type wsLineConn struct {
	conn    *websocket.Conn
	ctx     context.Context
	pending []byte
}

func (c *wsLineConn) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		typ, data, err := c.conn.Read(c.ctx)
		if err != nil {
			return 0, io.EOF
		}
		if typ != websocket.MessageText {
			continue
		}
		if !strings.HasSuffix(string(data), "\r\n") {
			data = append(data, '\r', '\n')
		}
		c.pending = data
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *wsLineConn) Write(p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	if err := c.conn.Write(ctx, websocket.MessageText, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsLineConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

func (c *wsLineConn) SetReadDeadline(time.Time) error  { return nil }
func (c *wsLineConn) SetWriteDeadline(time.Time) error { return nil }
