// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command fec-srv controls the SD-FEC cores of a node and serves
// commands over TCP.
//
// Usage: fec-srv [OPTIONS]
//
// Example:
//
//	$> fec-srv -cfg /etc/sdfec.yaml
//	$> fec-srv -cfg /etc/sdfec.yaml -pmon -pmon-freq=5s -pmon-log=/var/log/fec-srv-pmon.log
package main // import "github.com/go-lpc/sdfec/cmd/fec-srv"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/go-lpc/sdfec"
	"github.com/go-lpc/sdfec/fec"
	"github.com/go-lpc/sdfec/internal/alert"
	"github.com/go-lpc/sdfec/internal/boot"
	"github.com/go-lpc/sdfec/internal/config"
	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		fname   = flag.String("cfg", "/etc/sdfec.yaml", "path to configuration file")
		addr    = flag.String("addr", "", "[ip]:port to listen on (overrides configuration)")
		doMon   = flag.Bool("pmon", false, "enable pmon monitoring")
		monFreq = flag.Duration("pmon-freq", 1*time.Second, "pmon frequency")
		monLog  = flag.String("pmon-log", "fec-srv-pmon.log", "pmon output file")
		version = flag.Bool("version", false, "print version and exit")
	)

	flag.Parse()

	log.SetPrefix("fec-srv: ")
	log.SetFlags(0)

	if *version {
		fmt.Printf("fec-srv %s\n", sdfec.VersionString())
		return
	}

	cfg, err := config.Load(*fname)
	if err != nil {
		log.Fatalf("could not load configuration: %+v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *doMon {
		kill, err := monitor(*monLog, *monFreq)
		if err != nil {
			log.Fatalf("could not start pmon: %+v", err)
		}
		defer kill()
	}

	err = run(ctx, cfg)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	msg := cfg.Server.MsgStream("fec-srv", os.Stdout)

	node, err := boot.Open(ctx, cfg, msg)
	if err != nil {
		return fmt.Errorf("could not open devices: %w", err)
	}
	defer node.Close()

	err = node.Init()
	if err != nil {
		return fmt.Errorf("could not initialize devices: %w", err)
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		return node.Monitor(ctx)
	})

	if cfg.Alert.Enabled() {
		alerter := alert.New(cfg.Alert, msg)
		for _, dev := range node.Reg.Devices() {
			dev := dev
			grp.Go(func() error {
				return alerter.Watch(ctx, dev)
			})
		}
	}

	log.Printf("serving %d device(s) on %q (version %s)...",
		node.Reg.Len(), cfg.Server.Addr, sdfec.VersionString(),
	)
	grp.Go(func() error {
		return fec.Serve(ctx, cfg.Server.Addr, node.Reg, msg)
	})

	err = grp.Wait()
	if err != nil {
		return fmt.Errorf("could not run fec-srv: %w", err)
	}
	return nil
}

func monitor(fname string, freq time.Duration) (func(), error) {
	pid := os.Getpid()
	p, err := pmon.Monitor(pid)
	if err != nil {
		return nil, fmt.Errorf("could not start monitoring (pid=%d): %w", pid, err)
	}

	f, err := os.Create(fname)
	if err != nil {
		return nil, fmt.Errorf("could not create pmon log file: %w", err)
	}
	p.W = f
	p.Freq = freq

	go func() {
		log.Printf("run pmon (pid=%d)...", pid)
		err := p.Run()
		if err != nil {
			log.Printf("could not run pmon: %+v", err)
		}
	}()

	return func() {
		err := p.Kill()
		if err != nil {
			log.Printf("could not stop monitoring: %+v", err)
		}
		_ = f.Close()
	}, nil
}
