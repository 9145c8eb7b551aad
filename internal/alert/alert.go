// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package alert sends mail alerts when SD-FEC cores need a reset.
package alert // import "github.com/go-lpc/sdfec/internal/alert"

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/sdfec/fec"
	"github.com/go-lpc/sdfec/internal/config"
	mail "gopkg.in/gomail.v2"
)

// Alerter sends a bounded number of mail alerts per device.
type Alerter struct {
	msg  log.MsgStream
	cfg  config.Alert
	send func(m *mail.Message) error

	mu     sync.Mutex
	alerts map[uint32]int // number of alerts per device
}

// New returns a new alerter sending mails with the provided configuration.
func New(cfg config.Alert, msg log.MsgStream) *Alerter {
	dial := mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	return &Alerter{
		msg:    msg,
		cfg:    cfg,
		send:   func(m *mail.Message) error { return dial.DialAndSend(m) },
		alerts: make(map[uint32]int),
	}
}

// Alert reports the device needs a reset.
// Mails are sent for the first Max alerts of a device.
func (a *Alerter) Alert(dev *fec.Device) {
	var (
		id    = dev.ID()
		stats = dev.Stats()
	)
	a.msg.Errorf("sdfec%d needs a reset (isr=%d, cecc=%d, uecc=%d)",
		id, stats.ISRErrCount, stats.CECCCount, stats.UECCCount,
	)

	a.mu.Lock()
	a.alerts[id]++
	n := a.alerts[id]
	a.mu.Unlock()

	if n > a.cfg.Max {
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", a.cfg.From)
	msg.SetHeader("Bcc", a.cfg.To...)
	msg.SetHeader("Subject", fmt.Sprintf("[sdfec] sdfec%d needs a reset", id))
	msg.SetBody("text/plain", fmt.Sprintf(
		"device: sdfec%d\nstate: %v\nisr-errors: %d\ncorrectable-ecc: %d\nuncorrectable-ecc: %d\nalert: %d/%d",
		id, dev.State(), stats.ISRErrCount, stats.CECCCount, stats.UECCCount, n, a.cfg.Max,
	))

	err := a.send(msg)
	if err != nil {
		a.msg.Warnf("could not send mail alert for sdfec%d: %+v", id, err)
	}
}

// Watch sends an alert each time dev enters the needs-reset state,
// until ctx is done.
func (a *Alerter) Watch(ctx context.Context, dev *fec.Device) error {
	fatal := dev.Fatal()
	for {
		done := fatal.Done()
		select {
		case <-ctx.Done():
			return nil
		case <-done:
		}

		a.Alert(dev)

		// wait for the device to be reset.
		cleared := fatal.Cleared()
		if fatal.Done() != done {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-cleared:
		}
	}
}
