package cli

import (
	"path/filepath"
	"testing"
)

func runRoot(t *testing.T, args ...string) {
	t.Helper()
	root := NewRootCommand(nil)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("ledgerctl %v: %v", args, err)
	}
}

func TestCLICreateDBExecTablesStats(t *testing.T) {
	baseDir := t.TempDir()

	runRoot(t, "--base-dir", baseDir, "createdb", "--db", "shop")
	runRoot(t, "--base-dir", baseDir, "exec", "--db", "shop",
		"CREATE TABLE widgets (id INTEGER PRIMARY KEY AUTO_INCREMENT, name TEXT NOT NULL)")
	runRoot(t, "--base-dir", baseDir, "exec", "--db", "shop",
		"INSERT INTO widgets (name) VALUES ('bolt')")
	runRoot(t, "--base-dir", baseDir, "exec", "--db", "shop",
		"INSERT INTO widgets (name) VALUES ('nut')")
	runRoot(t, "--base-dir", baseDir, "tables", "--db", "shop")
	runRoot(t, "--base-dir", baseDir, "stats", "--db", "shop")
}

func TestCLIExportThenImportRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	backup := filepath.Join(t.TempDir(), "widgets.bak")

	runRoot(t, "--base-dir", baseDir, "createdb", "--db", "shop")
	runRoot(t, "--base-dir", baseDir, "exec", "--db", "shop",
		"CREATE TABLE widgets (id INTEGER PRIMARY KEY AUTO_INCREMENT, name TEXT NOT NULL)")
	runRoot(t, "--base-dir", baseDir, "exec", "--db", "shop",
		"INSERT INTO widgets (name) VALUES ('bolt')")
	runRoot(t, "--base-dir", baseDir, "exec", "--db", "shop",
		"INSERT INTO widgets (name) VALUES ('nut')")
	runRoot(t, "--base-dir", baseDir, "export", "widgets", "--db", "shop", "--out", backup)

	runRoot(t, "--base-dir", baseDir, "createdb", "--db", "shop2")
	runRoot(t, "--base-dir", baseDir, "exec", "--db", "shop2",
		"CREATE TABLE widgets (id INTEGER PRIMARY KEY AUTO_INCREMENT, name TEXT NOT NULL)")
	runRoot(t, "--base-dir", baseDir, "import", "widgets", "--db", "shop2", "--in", backup)
}
