// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/lib/pq"
)

func TestCreateSchemaIdempotent(t *testing.T) {
	conn, err := Open(context.Background(), "sqlite", "file:"+filepath.Join(t.TempDir(), "schema.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		if err := CreateSchema(conn); err != nil {
			t.Fatalf("CreateSchema() call %d error = %v", i+1, err)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	conn, err := Open(context.Background(), "sqlite", "file:"+filepath.Join(t.TempDir(), "unique.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer conn.Close()

	if err := CreateSchema(conn); err != nil {
		t.Fatalf("CreateSchema() error = %v", err)
	}

	insert := `INSERT INTO vote (id, voter_id, election_id, candidate_id) VALUES ($1, $2, $3, $4)`
	if _, err := conn.Exec(insert, "v1", "u1", "e1", "c1"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	_, err = conn.Exec(insert, "v2", "u1", "e1", "c2")
	if err == nil {
		t.Fatal("expected duplicate (voter, election) insert to fail")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"postgres unique", &pq.Error{Code: "23505"}, true},
		{"postgres fk", &pq.Error{Code: "23503"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpenUnsupportedType(t *testing.T) {
	if _, err := Open(context.Background(), "mongo", "x"); err == nil {
		t.Error("expected error for unsupported database type")
	}
}
