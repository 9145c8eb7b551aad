// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fakedb provides an in-memory SQL driver, registered as "fakedb",
// serving canned rows and recording the statements it runs.
package fakedb // import "github.com/go-lpc/sdfec/internal/fakedb"

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
)

// Stmt is a statement run against the fake database.
type Stmt struct {
	Query string
	Args  []driver.Value
}

var db struct {
	mu    sync.Mutex
	rows  Rows
	stmts []Stmt
	err   error
}

// Run runs f with the fake database serving rows.
// Runs are serialized.
func Run(ctx context.Context, rows Rows, f func(ctx context.Context) error) error {
	return RunErr(ctx, rows, nil, f)
}

// RunErr runs f with the fake database serving rows, and failing all
// statements with err when err is not nil.
func RunErr(ctx context.Context, rows Rows, err error, f func(ctx context.Context) error) error {
	run.Lock()
	defer run.Unlock()

	db.mu.Lock()
	db.rows = rows
	db.stmts = nil
	db.err = err
	db.mu.Unlock()

	return f(ctx)
}

var run sync.Mutex

// Stmts returns the statements run during the current run.
func Stmts() []Stmt {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]Stmt(nil), db.stmts...)
}

func record(query string, args []driver.Value) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.stmts = append(db.stmts, Stmt{Query: query, Args: args})
	return db.err
}

func init() {
	sql.Register("fakedb", &Driver{})
}

type Driver struct{}

func (drv *Driver) Open(name string) (driver.Conn, error) {
	return &Conn{}, nil
}

type Conn struct{}

func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return &stmt{query: query}, nil
}

func (c *Conn) Close() error {
	return nil
}

func (c *Conn) Begin() (driver.Tx, error) {
	return nil, errors.New("fakedb: transactions not supported")
}

type stmt struct {
	query string
}

func (stmt *stmt) Close() error {
	return nil
}

func (stmt *stmt) NumInput() int {
	return -1
}

func (stmt *stmt) Exec(args []driver.Value) (driver.Result, error) {
	err := record(stmt.query, args)
	if err != nil {
		return nil, err
	}
	return driver.RowsAffected(1), nil
}

func (stmt *stmt) Query(args []driver.Value) (driver.Rows, error) {
	err := record(stmt.query, args)
	if err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	rows := db.rows
	return &rows, nil
}

// Rows are the canned rows served by queries.
type Rows struct {
	Names  []string
	Values [][]driver.Value
}

func (rows *Rows) Columns() []string {
	return rows.Names
}

func (rows *Rows) Close() error {
	return nil
}

func (rows *Rows) Next(dest []driver.Value) error {
	if len(rows.Values) == 0 {
		return io.EOF
	}
	copy(dest, rows.Values[0])
	rows.Values = rows.Values[1:]
	return nil
}

var (
	_ driver.Driver = (*Driver)(nil)
	_ driver.Conn   = (*Conn)(nil)
	_ driver.Stmt   = (*stmt)(nil)
	_ driver.Rows   = (*Rows)(nil)
)
