// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command fec-ctl sends commands to a fec-srv server.
//
// Without arguments, fec-ctl starts an interactive shell.
//
// Example:
//
//	$> fec-ctl -addr node1:8877 list
//	$> fec-ctl -addr node1:8877
//	fec> open 0
//	fec> set-order maintain
//	fec> set-irq true true
//	fec> start
//	fec> get-stats
//	{
//	  "isr_err_count": 0,
//	  "cecc_count": 0,
//	  "uecc_count": 0
//	}
package main // import "github.com/go-lpc/sdfec/cmd/fec-ctl"

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-lpc/sdfec/fec"
	"github.com/peterh/liner"
)

func main() {
	addr := flag.String("addr", "localhost:8877", "[ip]:port of the fec-srv server")

	flag.Parse()

	log.SetPrefix("fec-ctl: ")
	log.SetFlags(0)

	c, err := fec.Dial(*addr)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	defer c.Close()

	if flag.NArg() > 0 {
		err = do(os.Stdout, c, strings.Join(flag.Args(), " "))
		if err != nil {
			log.Fatalf("%+v", err)
		}
		return
	}

	err = shell(c)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func shell(c *fec.Client) error {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)
	term.SetCompleter(complete)

	hist := filepath.Join(os.TempDir(), ".fec-ctl.history")
	if f, err := os.Open(hist); err == nil {
		_, _ = term.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(hist)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = term.WriteHistory(f)
	}()

	for {
		line, err := term.Prompt("fec> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println()
				return nil
			}
			return fmt.Errorf("could not read command: %w", err)
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		}
		term.AppendHistory(line)

		err = do(os.Stdout, c, line)
		if err != nil {
			log.Printf("%+v", err)
		}
	}
}

func do(w io.Writer, c *fec.Client, line string) error {
	name, args, err := parse(line)
	if err != nil {
		return err
	}

	var raw json.RawMessage
	err = c.Do(name, args, &raw)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	out := new(bytes.Buffer)
	err = json.Indent(out, raw, "", "  ")
	if err != nil {
		return fmt.Errorf("could not format %q reply: %w", name, err)
	}
	fmt.Fprintf(w, "%s\n", out.Bytes())
	return nil
}

var cmdNames = func() []string {
	names := []string{"version", "list", "open", "close", "poll", "wait"}
	for _, cmd := range fec.Commands() {
		names = append(names, cmd.String())
	}
	sort.Strings(names)
	return names
}()

func complete(line string) []string {
	var out []string
	for _, name := range cmdNames {
		if strings.HasPrefix(name, line) {
			out = append(out, name)
		}
	}
	return out
}

// parse parses a command line into a request name and its arguments.
// Arguments starting with '{' or '[' are sent verbatim as JSON.
func parse(line string) (string, any, error) {
	toks := strings.Fields(line)
	if len(toks) == 0 {
		return "", nil, fmt.Errorf("empty command")
	}
	name := strings.ToLower(toks[0])
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), toks[0]))
	toks = toks[1:]

	if strings.HasPrefix(rest, "{") || strings.HasPrefix(rest, "[") {
		if !json.Valid([]byte(rest)) {
			return "", nil, fmt.Errorf("invalid JSON arguments for %q", name)
		}
		return name, json.RawMessage(rest), nil
	}

	nargs := func(n int) error {
		if len(toks) != n {
			return fmt.Errorf("%q takes %d argument(s), got %d", name, n, len(toks))
		}
		return nil
	}

	switch name {
	case "open":
		if err := nargs(1); err != nil {
			return "", nil, err
		}
		id, err := strconv.ParseUint(toks[0], 0, 32)
		if err != nil {
			return "", nil, fmt.Errorf("invalid device id %q: %w", toks[0], err)
		}
		return name, map[string]uint32{"id": uint32(id)}, nil

	case "wait":
		if len(toks) == 0 {
			return name, nil, nil
		}
		if err := nargs(1); err != nil {
			return "", nil, err
		}
		return name, map[string]string{"timeout": toks[0]}, nil

	case "set-order":
		if err := nargs(1); err != nil {
			return "", nil, err
		}
		return name, toks[0], nil

	case "set-bypass":
		if err := nargs(1); err != nil {
			return "", nil, err
		}
		v, err := strconv.ParseUint(toks[0], 0, 32)
		if err != nil {
			return "", nil, fmt.Errorf("invalid bypass value %q: %w", toks[0], err)
		}
		return name, uint32(v), nil

	case "set-irq":
		if err := nargs(2); err != nil {
			return "", nil, err
		}
		isr, err := strconv.ParseBool(toks[0])
		if err != nil {
			return "", nil, fmt.Errorf("invalid isr enable %q: %w", toks[0], err)
		}
		ecc, err := strconv.ParseBool(toks[1])
		if err != nil {
			return "", nil, fmt.Errorf("invalid ecc enable %q: %w", toks[1], err)
		}
		return name, map[string]bool{"isr": isr, "ecc": ecc}, nil

	case "set-turbo":
		if err := nargs(2); err != nil {
			return "", nil, err
		}
		var vs [2]uint32
		for i, tok := range toks {
			v, err := strconv.ParseUint(tok, 0, 32)
			if err != nil {
				return "", nil, fmt.Errorf("invalid turbo parameter %q: %w", tok, err)
			}
			vs[i] = uint32(v)
		}
		return name, fec.TurboParams{Scale: vs[0], Alg: vs[1]}, nil

	case "get-ldpc-code-params":
		if err := nargs(2); err != nil {
			return "", nil, err
		}
		var vs [2]uint32
		for i, tok := range toks {
			v, err := strconv.ParseUint(tok, 0, 32)
			if err != nil {
				return "", nil, fmt.Errorf("invalid code parameter %q: %w", tok, err)
			}
			vs[i] = uint32(v)
		}
		return name, map[string]uint32{"code_id": vs[0], "nqc": vs[1]}, nil
	}

	if len(toks) != 0 {
		return "", nil, fmt.Errorf("%q takes no argument", name)
	}
	return name, nil, nil
}
