// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fec

import (
	"fmt"
	"strings"
)

// Command identifies an operation issued through a Handle.
type Command uint8

const (
	CmdStart Command = iota
	CmdStop
	CmdClearStats
	CmdGetStats
	CmdGetStatus
	CmdGetConfig
	CmdSetDefaultConfig
	CmdSetIRQ
	CmdSetTurbo
	CmdGetTurbo
	CmdAddLDPCCode
	CmdGetLDPCCodeParams
	CmdSetOrder
	CmdSetBypass
	CmdIsActive

	numCommands
)

var cmdNames = [numCommands]string{
	CmdStart:             "start",
	CmdStop:              "stop",
	CmdClearStats:        "clear-stats",
	CmdGetStats:          "get-stats",
	CmdGetStatus:         "get-status",
	CmdGetConfig:         "get-config",
	CmdSetDefaultConfig:  "set-default-config",
	CmdSetIRQ:            "set-irq",
	CmdSetTurbo:          "set-turbo",
	CmdGetTurbo:          "get-turbo",
	CmdAddLDPCCode:       "add-ldpc-code",
	CmdGetLDPCCodeParams: "get-ldpc-code-params",
	CmdSetOrder:          "set-order",
	CmdSetBypass:         "set-bypass",
	CmdIsActive:          "is-active",
}

func (cmd Command) String() string {
	if cmd < numCommands {
		return cmdNames[cmd]
	}
	return fmt.Sprintf("Command(%d)", uint8(cmd))
}

// Commands returns all the commands, in order.
func Commands() []Command {
	cmds := make([]Command, numCommands)
	for i := range cmds {
		cmds[i] = Command(i)
	}
	return cmds
}

// ParseCommand returns the command with the provided name.
func ParseCommand(name string) (Command, error) {
	name = strings.ToLower(name)
	for i, v := range cmdNames {
		if v == name {
			return Command(i), nil
		}
	}
	return 0, fmt.Errorf("fec: unknown command %q: %w", name, ErrInvalid)
}

// Allowed reports whether cmd may be issued while the device is in state st.
// A device that needs a reset only accepts commands to reset it or to
// inspect its status and error counters.
func (cmd Command) Allowed(st State) bool {
	if st != NeedsReset {
		return true
	}
	switch cmd {
	case CmdSetDefaultConfig, CmdGetStatus, CmdGetStats, CmdClearStats:
		return true
	}
	return false
}
