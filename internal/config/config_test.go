// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/sdfec/fec"
)

const testConfig = `
server:
  addr: ":9999"
  log_level: debug
db:
  dsn: "user:pass@tcp(localhost:3306)/sdfec"
alert:
  host: smtp.example.com
  from: daq@example.com
  to: [shifter@example.com]
devices:
  - name: sd_fec0
    code: ldpc
    order: maintain
    din_width: 2x128b
    dout_words: per-transaction
    irq: {isr: true, ecc: true}
    ldpc:
      - name: dvb-s2-1/2
        code_id: 1
      - code_id: 2
        n: 8
        k: 4
        nlayers: 2
        sc_table: [1, 2]
        la_table: [3, 4]
  - uio: /dev/uio3
    code: turbo
    order: out-of-order
    turbo: {scale: 12, alg: 1}
`

func TestLoad(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "sdfec.yaml")
	err := os.WriteFile(fname, []byte(testConfig), 0644)
	if err != nil {
		t.Fatalf("could not create config file: %+v", err)
	}

	cfg, err := Load(fname)
	if err != nil {
		t.Fatalf("could not load config: %+v", err)
	}

	if got, want := cfg.Server, (Server{Addr: ":9999", LogLevel: "debug"}); got != want {
		t.Fatalf("invalid server config: got=%+v, want=%+v", got, want)
	}

	if got, want := cfg.Server.Level(), log.LvlDebug; got != want {
		t.Fatalf("invalid log level: got=%v, want=%v", got, want)
	}

	if got, want := cfg.Alert.Max, DefaultMaxAlerts; got != want {
		t.Fatalf("invalid max alerts: got=%d, want=%d", got, want)
	}
	if got, want := cfg.Alert.Port, 587; got != want {
		t.Fatalf("invalid alert port: got=%d, want=%d", got, want)
	}

	if got, want := len(cfg.Devices), 2; got != want {
		t.Fatalf("invalid number of devices: got=%d, want=%d", got, want)
	}

	dev := cfg.Devices[0]
	if got, want := dev.FEC(), (fec.Config{
		Code:      fec.LDPC,
		Order:     fec.MaintainOrder,
		DinWidth:  fec.Width2x128b,
		DoutWidth: fec.Width1x128b,
		DoutWords: fec.PerTransaction,
	}); got != want {
		t.Fatalf("invalid fec config:\ngot= %+v\nwant=%+v", got, want)
	}
	if got, want := dev.Size, fec.WindowSize; got != want {
		t.Fatalf("invalid window size: got=0x%x, want=0x%x", got, want)
	}
	if !dev.IRQ.ISR || !dev.IRQ.ECC {
		t.Fatalf("invalid irq config: %+v", dev.IRQ)
	}

	want := []LDPCCode{
		{Name: "dvb-s2-1/2", LDPCParams: fec.LDPCParams{CodeID: 1}},
		{LDPCParams: fec.LDPCParams{
			CodeID: 2, N: 8, K: 4, NLayers: 2,
			SCTable: []uint32{1, 2}, LATable: []uint32{3, 4},
		}},
	}
	if got := dev.LDPC; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid ldpc codes:\ngot= %+v\nwant=%+v", got, want)
	}

	dev = cfg.Devices[1]
	if got, want := dev.UIO, "/dev/uio3"; got != want {
		t.Fatalf("invalid uio: got=%q, want=%q", got, want)
	}
	if got, want := *dev.Turbo, (fec.TurboParams{Scale: 12, Alg: 1}); got != want {
		t.Fatalf("invalid turbo params: got=%+v, want=%+v", got, want)
	}

	_, err = Load(filepath.Join(t.TempDir(), "not-there.yaml"))
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func TestDecodeFail(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  string
		err  string
	}{
		{
			name: "empty",
			cfg:  "",
			err:  "config: no device",
		},
		{
			name: "unknown-field",
			cfg:  "devices:\n  - name: fec0\n    colour: blue\n",
			err:  "field colour not found",
		},
		{
			name: "bad-code",
			cfg:  "devices:\n  - name: fec0\n    code: polar\n",
			err:  `invalid code "polar"`,
		},
		{
			name: "log-level",
			cfg:  "server: {log_level: chatty}\ndevices:\n  - name: fec0\n",
			err:  `config: invalid log level "chatty"`,
		},
		{
			name: "no-name",
			cfg:  "devices:\n  - code: ldpc\n",
			err:  "no uio device nor name",
		},
		{
			name: "dup-device",
			cfg:  "devices:\n  - name: fec0\n  - name: fec0\n",
			err:  `"fec0" already used by device #0`,
		},
		{
			name: "small-window",
			cfg:  "devices:\n  - name: fec0\n    size: 4096\n",
			err:  "register window too small",
		},
		{
			name: "ldpc-on-turbo",
			cfg:  "devices:\n  - name: fec0\n    code: turbo\n    ldpc: [{code_id: 0}]\n",
			err:  "LDPC codes on a turbo device",
		},
		{
			name: "turbo-on-ldpc",
			cfg:  "devices:\n  - name: fec0\n    code: ldpc\n    turbo: {scale: 1}\n",
			err:  "turbo parameters on a LDPC device",
		},
		{
			name: "turbo-and-ldpc",
			cfg:  "devices:\n  - name: fec0\n    turbo: {scale: 1}\n    ldpc: [{code_id: 0}]\n",
			err:  "both turbo parameters and LDPC codes",
		},
		{
			name: "turbo-scale",
			cfg:  "devices:\n  - name: fec0\n    turbo: {scale: 16}\n",
			err:  "invalid turbo parameters",
		},
		{
			name: "code-slot",
			cfg:  "devices:\n  - name: fec0\n    ldpc: [{code_id: 32}]\n",
			err:  "invalid code slot 32",
		},
		{
			name: "dup-code-slot",
			cfg:  "devices:\n  - name: fec0\n    ldpc: [{code_id: 3}, {code_id: 3}]\n",
			err:  "code slot 3 already used by code #0",
		},
		{
			name: "no-db",
			cfg:  "devices:\n  - name: fec0\n    ldpc: [{name: wifi, code_id: 3}]\n",
			err:  `code "wifi" requires a code database`,
		},
		{
			name: "alert-no-sender",
			cfg:  "alert: {host: smtp}\ndevices:\n  - name: fec0\n",
			err:  "without sender",
		},
		{
			name: "alert-no-recipient",
			cfg:  "alert: {host: smtp, from: daq}\ndevices:\n  - name: fec0\n",
			err:  "without recipients",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tc.cfg))
			if err == nil {
				t.Fatalf("expected an error")
			}
			if got, want := err.Error(), tc.err; !strings.Contains(got, want) {
				t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, want)
			}
		})
	}
}
