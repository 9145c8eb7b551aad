// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/sdfec"
)

// request is a command request sent to a Server.
type request struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// reply is the response of a Server to a request.
// Msg is "ok" on success, the error message otherwise.
type reply struct {
	Msg  string          `json:"msg"`
	Kind string          `json:"kind,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

var errKinds = []struct {
	err  error
	kind string
}{
	{ErrInvalid, "invalid"},
	{ErrPermission, "permission"},
	{ErrBusy, "busy"},
	{ErrFault, "fault"},
	{ErrIO, "io"},
	{context.DeadlineExceeded, "timeout"},
}

func errKind(err error) string {
	for _, v := range errKinds {
		if errors.Is(err, v.err) {
			return v.kind
		}
	}
	return ""
}

func kindErr(kind string) error {
	for _, v := range errKinds {
		if v.kind == kind {
			return v.err
		}
	}
	return nil
}

// Server exposes the devices of a registry over a TCP connection,
// with newline-delimited JSON requests and replies.
//
// Each connection holds at most one device handle, acquired with the
// "open" request and released with "close" or when the connection ends.
type Server struct {
	ctl net.Listener
	msg log.MsgStream
	reg *Registry
}

// NewServer creates a new command server listening on addr.
func NewServer(addr string, reg *Registry, msg log.MsgStream) (*Server, error) {
	ctl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("fec: could not create command server on %q: %w", addr, err)
	}
	return &Server{ctl: ctl, msg: msg, reg: reg}, nil
}

// Serve creates a command server on addr and serves requests until
// ctx is done.
func Serve(ctx context.Context, addr string, reg *Registry, msg log.MsgStream) error {
	srv, err := NewServer(addr, reg, msg)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// Addr returns the listening address of the server.
func (srv *Server) Addr() net.Addr {
	return srv.ctl.Addr()
}

// Close stops accepting new connections.
func (srv *Server) Close() error {
	return srv.ctl.Close()
}

// Serve accepts and serves connections until ctx is done or the server
// is closed.
func (srv *Server) Serve(ctx context.Context) error {
	defer srv.ctl.Close()
	stop := context.AfterFunc(ctx, func() { _ = srv.ctl.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("fec: could not accept connection: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			srv.handle(ctx, conn)
		}()
	}
}

// session is the state of a client connection.
type session struct {
	h *Handle
}

func (sess *session) release() {
	if sess.h == nil {
		return
	}
	_ = sess.h.Release()
	sess.h = nil
}

func (srv *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	srv.msg.Infof("serving %v...", conn.RemoteAddr())
	defer srv.msg.Infof("serving %v... [done]", conn.RemoteAddr())

	// ctx is cancelled as soon as the client goes away, so blocking
	// requests such as "wait" do not outlive the connection.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		sess session
		reqs = make(chan decoded)
		enc  = json.NewEncoder(conn)
	)
	defer sess.release()

	go srv.read(ctx, cancel, conn, reqs)

	for {
		var msg decoded
		select {
		case <-ctx.Done():
			return
		case msg = <-reqs:
		}

		if msg.err != nil {
			srv.msg.Errorf("could not decode command request: %+v", msg.err)
			srv.reply(enc, nil, fmt.Errorf("fec: invalid request: %w: %w", msg.err, ErrInvalid))
			return
		}
		req := msg.req
		srv.msg.Debugf("received request: name=%q", req.Name)

		data, err := srv.dispatch(ctx, &sess, req)
		if err != nil {
			srv.msg.Errorf("could not run %q: %+v", req.Name, err)
		}
		srv.reply(enc, data, err)
	}
}

// decoded is a request, or the error encountered while decoding it.
type decoded struct {
	req request
	err error
}

// read decodes requests from conn into reqs.
// cancel is called when the client closes its side of the connection.
func (srv *Server) read(ctx context.Context, cancel context.CancelFunc, conn net.Conn, reqs chan<- decoded) {
	dec := json.NewDecoder(conn)
	for {
		var req request
		err := dec.Decode(&req)
		if err != nil && (errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)) {
			cancel()
			return
		}
		select {
		case reqs <- decoded{req: req, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (srv *Server) dispatch(ctx context.Context, sess *session, req request) (any, error) {
	name := strings.ToLower(req.Name)
	switch name {
	case "version":
		return sdfec.VersionString(), nil

	case "list":
		devs := srv.reg.Devices()
		sts := make([]Status, 0, len(devs))
		for _, dev := range devs {
			dev.mu.Lock()
			st, err := dev.status()
			dev.mu.Unlock()
			if err != nil {
				return nil, err
			}
			sts = append(sts, st)
		}
		return sts, nil

	case "open":
		var args struct {
			ID uint32 `json:"id"`
		}
		err := decodeArgs(req, &args)
		if err != nil {
			return nil, err
		}
		if sess.h != nil {
			return nil, fmt.Errorf(
				"fec: connection already holds sdfec%d: %w",
				sess.h.Device().ID(), ErrBusy,
			)
		}
		dev, err := srv.reg.Device(args.ID)
		if err != nil {
			return nil, err
		}
		h, err := dev.Open()
		if err != nil {
			return nil, err
		}
		sess.h = h
		return nil, nil

	case "close":
		if sess.h == nil {
			return nil, fmt.Errorf("fec: no device opened: %w", ErrFault)
		}
		sess.release()
		return nil, nil
	}

	h := sess.h
	if h == nil {
		return nil, fmt.Errorf("fec: %s: no device opened: %w", name, ErrFault)
	}

	switch name {
	case "poll":
		return h.Poll()

	case "wait":
		var args struct {
			Timeout string `json:"timeout"`
		}
		if len(req.Args) != 0 {
			err := decodeArgs(req, &args)
			if err != nil {
				return nil, err
			}
		}
		if args.Timeout != "" {
			timeout, err := time.ParseDuration(args.Timeout)
			if err != nil {
				return nil, fmt.Errorf("fec: invalid wait timeout %q: %w", args.Timeout, ErrInvalid)
			}
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		err := h.Wait(ctx)
		if err != nil {
			return nil, fmt.Errorf("fec: could not wait for sdfec%d: %w", h.Device().ID(), err)
		}
		return true, nil
	}

	cmd, err := ParseCommand(name)
	if err != nil {
		return nil, err
	}

	switch cmd {
	case CmdStart:
		return nil, h.Start()
	case CmdStop:
		return nil, h.Stop()
	case CmdClearStats:
		return nil, h.ClearStats()
	case CmdGetStats:
		return h.Stats()
	case CmdGetStatus:
		return h.Status()
	case CmdGetConfig:
		return h.Config()
	case CmdSetDefaultConfig:
		return nil, h.SetDefaultConfig()
	case CmdSetIRQ:
		var args struct {
			ISR bool `json:"isr"`
			ECC bool `json:"ecc"`
		}
		err := decodeArgs(req, &args)
		if err != nil {
			return nil, err
		}
		return nil, h.SetIRQ(args.ISR, args.ECC)
	case CmdSetTurbo:
		var args TurboParams
		err := decodeArgs(req, &args)
		if err != nil {
			return nil, err
		}
		return nil, h.SetTurbo(args)
	case CmdGetTurbo:
		return h.Turbo()
	case CmdAddLDPCCode:
		var args LDPCParams
		err := decodeArgs(req, &args)
		if err != nil {
			return nil, err
		}
		return nil, h.AddLDPCCode(args)
	case CmdGetLDPCCodeParams:
		var args struct {
			CodeID uint32 `json:"code_id"`
			NQC    uint32 `json:"nqc"`
		}
		err := decodeArgs(req, &args)
		if err != nil {
			return nil, err
		}
		return h.LDPCCode(args.CodeID, args.NQC)
	case CmdSetOrder:
		var args Order
		err := decodeArgs(req, &args)
		if err != nil {
			return nil, err
		}
		return nil, h.SetOrder(args)
	case CmdSetBypass:
		var args uint32
		err := decodeArgs(req, &args)
		if err != nil {
			return nil, err
		}
		return nil, h.SetBypass(args)
	case CmdIsActive:
		return h.IsActive()
	}

	return nil, fmt.Errorf("fec: unknown command %q: %w", req.Name, ErrInvalid)
}

func decodeArgs(req request, v any) error {
	if len(req.Args) == 0 {
		return fmt.Errorf("fec: missing %q arguments: %w", req.Name, ErrInvalid)
	}
	err := json.Unmarshal(req.Args, v)
	if err != nil {
		return fmt.Errorf("fec: could not decode %q arguments: %w: %w", req.Name, err, ErrInvalid)
	}
	return nil
}

func (srv *Server) reply(enc *json.Encoder, data any, err error) {
	rep := reply{Msg: "ok"}
	if err != nil {
		rep.Msg = err.Error()
		rep.Kind = errKind(err)
	}
	if err == nil && data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			rep.Msg = fmt.Sprintf("fec: could not encode reply: %+v", err)
		}
		rep.Data = raw
	}

	err = enc.Encode(rep)
	if err != nil {
		srv.msg.Warnf("could not send reply: %+v", err)
	}
}

// Client is a connection to a command Server.
type Client struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

// Dial connects to the command server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("fec: could not dial command server %q: %w", addr, err)
	}
	return &Client{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(conn),
	}, nil
}

// Close closes the connection, releasing any device held by it.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends the named request with the provided arguments and decodes
// the reply payload into v, when v is not nil.
// Errors reported by the server wrap the matching error kind.
func (c *Client) Do(name string, args, v any) error {
	req := request{Name: name}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("fec: could not encode %q arguments: %w", name, err)
		}
		req.Args = raw
	}

	err := c.enc.Encode(req)
	if err != nil {
		return fmt.Errorf("fec: could not send %q request: %w", name, err)
	}

	var rep reply
	err = c.dec.Decode(&rep)
	if err != nil {
		return fmt.Errorf("fec: could not read %q reply: %w", name, err)
	}

	if rep.Msg != "ok" {
		if kerr := kindErr(rep.Kind); kerr != nil {
			return fmt.Errorf("%s: %w", rep.Msg, kerr)
		}
		return errors.New(rep.Msg)
	}

	if v == nil || len(rep.Data) == 0 {
		return nil
	}
	err = json.Unmarshal(rep.Data, v)
	if err != nil {
		return fmt.Errorf("fec: could not decode %q reply: %w", name, err)
	}
	return nil
}
