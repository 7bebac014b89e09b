package migrations

import (
	"context"
	"fmt"
	"strings"

	chstore "ipo-window-lab/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the DSN's database if needed, applies the
// embedded schema statement by statement and returns a connection to that
// database. ClickHouse migrations must be idempotent (IF NOT EXISTS); no
// version table is kept.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	opts, err := chstore.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	database := opts.Auth.Database
	if database == "" {
		return nil, fmt.Errorf("clickhouse dsn %q names no database", opts.Addr[0])
	}

	files, err := load(clickhouseFS, "clickhouse")
	if err != nil {
		return nil, err
	}

	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	err = admin.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+quoteIdent(database))
	admin.Close()
	if err != nil {
		return nil, fmt.Errorf("create database %s: %w", database, err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, database)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse %s: %w", database, err)
	}
	for _, m := range files {
		// The native protocol runs one statement per Exec.
		for i, stmt := range splitStatements(m.body) {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply migration %s statement %d: %w", m.version, i+1, err)
			}
		}
	}
	return conn, nil
}

// splitStatements splits a script on semicolons outside quoted strings,
// identifiers and -- comments. Comments are dropped.
func splitStatements(script string) []string {
	var (
		stmts []string
		cur   strings.Builder
		quote byte
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(script); i++ {
		ch := script[i]
		switch {
		case quote != 0:
			cur.WriteByte(ch)
			if ch == '\\' && i+1 < len(script) {
				i++
				cur.WriteByte(script[i])
			} else if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
			cur.WriteByte(ch)
		case ch == '-' && i+1 < len(script) && script[i+1] == '-':
			for i < len(script) && script[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case ch == ';':
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	flush()
	return stmts
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
