package database

import (
	"strings"
	"testing"
)

// 埋め込みマイグレーションが存在し、up/downが対になっていることを検証
func TestMigrationsFS_ContainsPairedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("failed to read embedded migrations: %v", err)
	}

	if len(entries) == 0 {
		t.Fatal("no migration files embedded")
	}

	ups := 0
	downs := 0
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups++
		case strings.HasSuffix(name, ".down.sql"):
			downs++
		default:
			t.Errorf("unexpected migration file name: %s", name)
		}
	}

	if ups != downs {
		t.Errorf("up migrations = %d, down migrations = %d, want equal", ups, downs)
	}
}

// 初期マイグレーションが必要なテーブルをすべて作成することを検証
func TestInitMigration_CreatesCoreTables(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/000001_init.up.sql")
	if err != nil {
		t.Fatalf("failed to read init migration: %v", err)
	}
	sql := string(data)

	for _, table := range []string{"users", "profiles", "sessions", "stories"} {
		if !strings.Contains(sql, "CREATE TABLE "+table) {
			t.Errorf("init migration should create table %s", table)
		}
	}

	// view_countの非負制約はDBレベルでも保証する
	if !strings.Contains(sql, "view_count >= 0") {
		t.Error("init migration should enforce non-negative view_count")
	}
}

func TestOpen_InvalidURL_StillReturnsHandle(t *testing.T) {
	// sql.Openは接続を試行しないため、不正なホストでもエラーにならない
	db, err := Open("postgres://invalid")
	if err != nil {
		t.Fatalf("Open should not fail before Ping: %v", err)
	}
	defer db.Close()
}
