// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package codedb retrieves and stores LDPC code definitions in a MySQL
// database.
//
// Codes are stored in the ldpc_codes table, one row per named code.
// The SC, LA and QC tables are stored as comma-separated hexadecimal words.
package codedb // import "github.com/go-lpc/sdfec/codedb"

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-lpc/sdfec/fec"
	"github.com/go-sql-driver/mysql"
)

var drvName = "mysql"

// DB exposes convenience methods to retrieve LDPC codes from the
// code database.
type DB struct {
	db   *sql.DB
	name string // name of the code database
}

// Open opens a connection to the code database described by dsn.
func Open(dsn string) (*DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("codedb: invalid dsn: %w", err)
	}

	db, err := sql.Open(drvName, cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("codedb: could not open %q db: %w", cfg.DBName, err)
	}

	err = ping(db, cfg.DBName)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{db: db, name: cfg.DBName}, nil
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("codedb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Name returns the name of the code database.
func (db *DB) Name() string { return db.name }

const codeColumns = "n, k, psize, no_packing, nm, nlayers, nmqc, norm_type, " +
	"special_qc, no_final_parity, max_schedule, sc_off, la_off, qc_off, nqc, " +
	"sc_table, la_table, qc_table"

// LDPCCode returns the definition of the named LDPC code.
// The returned code has a zero CodeID.
func (db *DB) LDPCCode(ctx context.Context, name string) (fec.LDPCParams, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var code fec.LDPCParams
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT "+codeColumns+" FROM ldpc_codes WHERE name=? LIMIT 1", name,
	)
	if err != nil {
		return code, fmt.Errorf("codedb: could not query ldpc code %q: %w", name, err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var sc, la, qc string
		err = rows.Scan(
			&code.N, &code.K, &code.PSize, &code.NoPacking, &code.NM,
			&code.NLayers, &code.NMQC, &code.NormType, &code.SpecialQC,
			&code.NoFinalParity, &code.MaxSchedule,
			&code.SCOff, &code.LAOff, &code.QCOff, &code.NQC,
			&sc, &la, &qc,
		)
		if err != nil {
			return code, fmt.Errorf("codedb: could not scan ldpc code %q: %w", name, err)
		}

		for _, v := range []struct {
			name string
			str  string
			dst  *[]uint32
		}{
			{"sc", sc, &code.SCTable},
			{"la", la, &code.LATable},
			{"qc", qc, &code.QCTable},
		} {
			*v.dst, err = parseTable(v.str)
			if err != nil {
				return code, fmt.Errorf(
					"codedb: could not parse %s table of ldpc code %q: %w",
					v.name, name, err,
				)
			}
		}
		found = true
	}

	err = rows.Err()
	if err != nil {
		return code, fmt.Errorf("codedb: could not scan db for ldpc code %q: %w", name, err)
	}

	err = ctx.Err()
	if err != nil {
		return code, fmt.Errorf("codedb: context error while retrieving ldpc code %q: %w", name, err)
	}

	if !found {
		return code, fmt.Errorf("codedb: no ldpc code %q: %w", name, sql.ErrNoRows)
	}

	return code, nil
}

// LDPCCodeNames returns the sorted names of all LDPC codes in the database.
func (db *DB) LDPCCodeNames(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := db.db.QueryContext(ctx, "SELECT name FROM ldpc_codes ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("codedb: could not query ldpc code names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		err = rows.Scan(&name)
		if err != nil {
			return nil, fmt.Errorf("codedb: could not scan ldpc code name: %w", err)
		}
		names = append(names, name)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("codedb: could not scan db for ldpc code names: %w", err)
	}

	err = ctx.Err()
	if err != nil {
		return nil, fmt.Errorf("codedb: context error while retrieving ldpc code names: %w", err)
	}

	return names, nil
}

// StoreLDPCCode stores the definition of an LDPC code under name.
// The CodeID of the code is not stored.
func (db *DB) StoreLDPCCode(ctx context.Context, name string, code fec.LDPCParams) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := db.db.ExecContext(
		ctx,
		"INSERT INTO ldpc_codes (name, "+codeColumns+") "+
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		name,
		code.N, code.K, code.PSize, code.NoPacking, code.NM,
		code.NLayers, code.NMQC, code.NormType, code.SpecialQC,
		code.NoFinalParity, code.MaxSchedule,
		code.SCOff, code.LAOff, code.QCOff, code.NQC,
		formatTable(code.SCTable),
		formatTable(code.LATable),
		formatTable(code.QCTable),
	)
	if err != nil {
		return fmt.Errorf("codedb: could not store ldpc code %q: %w", name, err)
	}
	return nil
}

func parseTable(s string) ([]uint32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	toks := strings.Split(s, ",")
	tbl := make([]uint32, len(toks))
	for i, tok := range toks {
		v, err := strconv.ParseUint(strings.TrimSpace(tok), 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid word %d: %w", i, err)
		}
		tbl[i] = uint32(v)
	}
	return tbl, nil
}

func formatTable(tbl []uint32) string {
	var o strings.Builder
	for i, v := range tbl {
		if i > 0 {
			o.WriteString(",")
		}
		fmt.Fprintf(&o, "0x%x", v)
	}
	return o.String()
}
