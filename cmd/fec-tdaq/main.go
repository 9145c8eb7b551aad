// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command fec-tdaq starts a TDAQ server driving the SD-FEC cores of a node.
//
// Usage: fec-tdaq [TDAQ-OPTIONS] config.yaml
package main // import "github.com/go-lpc/sdfec/cmd/fec-tdaq"

import (
	"context"
	"log"
	"os"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/sdfec/fec"
	"github.com/go-lpc/sdfec/internal/boot"
	"github.com/go-lpc/sdfec/internal/config"
)

func main() {
	cmd := flags.New()

	log.SetPrefix("fec-tdaq: ")
	log.SetFlags(0)

	if len(cmd.Args) == 0 {
		log.Fatalf("missing configuration file")
	}

	cfg, err := config.Load(cmd.Args[0])
	if err != nil {
		log.Fatalf("could not load configuration: %+v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	node, err := boot.Open(ctx, cfg, cfg.Server.MsgStream("fec-tdaq", os.Stdout))
	if err != nil {
		log.Fatalf("could not open devices: %+v", err)
	}
	defer node.Close()

	go func() {
		err := node.Monitor(ctx)
		if err != nil {
			log.Printf("could not monitor devices: %+v", err)
		}
	}()

	rc := fec.NewRunControl(node.Reg, node.Setup)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", rc.OnConfig)
	srv.CmdHandle("/init", rc.OnInit)
	srv.CmdHandle("/reset", rc.OnReset)
	srv.CmdHandle("/start", rc.OnStart)
	srv.CmdHandle("/stop", rc.OnStop)
	srv.CmdHandle("/quit", rc.OnQuit)
	srv.CmdHandle("/status", rc.OnStatus)

	srv.RunHandle(rc.Run)

	err = srv.Run(ctx)
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}
