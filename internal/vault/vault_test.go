package vault

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

func writeCookieDB(t *testing.T, version string, rows []cookieRow) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "Cookies")
	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	stmts := []string{
		`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT)`,
		`CREATE TABLE cookies (host_key TEXT, name TEXT, value TEXT, encrypted_value BLOB)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.Exec(`INSERT INTO meta (key, value) VALUES ('version', ?)`, version); err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		if _, err := db.Exec(
			`INSERT INTO cookies (host_key, name, value, encrypted_value) VALUES (?, ?, ?, ?)`,
			r.hostKey, r.name, r.value, r.encryptedValue,
		); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestReadDomainsMergesDottedAndBareHost(t *testing.T) {
	key := deriveAESKey("pw", 1)
	enc := encryptForTest(t, key, []byte("secret-value"))

	dbPath := writeCookieDB(t, "20", []cookieRow{
		{hostKey: ".example.com", name: "session", value: "plain"},
		{hostKey: "example.com", name: "a", encryptedValue: enc},
		{hostKey: "other.com", name: "noise", value: "x"},
	})

	sets, err := readDomains(context.Background(), dbPath, key, []string{"example.com"})
	if err != nil {
		t.Fatal(err)
	}
	got := sets["example.com"].Values
	if len(got) != 2 {
		t.Fatalf("want 2 cookies, got %d: %v", len(got), got)
	}
	if got["session"] != "plain" {
		t.Fatalf("plain cookie: want %q got %q", "plain", got["session"])
	}
	if got["a"] != "secret-value" {
		t.Fatalf("encrypted cookie: want %q got %q", "secret-value", got["a"])
	}
}

func TestReadDomainsBadCookieDoesNotAbort(t *testing.T) {
	key := deriveAESKey("pw", 1)

	dbPath := writeCookieDB(t, "20", []cookieRow{
		{hostKey: "example.com", name: "bad", encryptedValue: []byte("v99garbage-not-aes")},
		{hostKey: "example.com", name: "good", value: "ok"},
	})

	sets, err := readDomains(context.Background(), dbPath, key, []string{"example.com"})
	if err != nil {
		t.Fatal(err)
	}
	got := sets["example.com"].Values
	if len(got) != 1 || got["good"] != "ok" {
		t.Fatalf("unexpected cookies: %v", got)
	}
}

func TestReadDomainsMultipleDomainsOnePass(t *testing.T) {
	key := deriveAESKey("pw", 1)
	dbPath := writeCookieDB(t, "20", []cookieRow{
		{hostKey: ".claude.ai", name: "sessionKey", value: "k1"},
		{hostKey: "chatgpt.com", name: "token", value: "k2"},
	})

	sets, err := readDomains(context.Background(), dbPath, key, []string{"claude.ai", "chatgpt.com"})
	if err != nil {
		t.Fatal(err)
	}
	if sets["claude.ai"].Values["sessionKey"] != "k1" {
		t.Fatalf("claude.ai: %v", sets["claude.ai"].Values)
	}
	if sets["chatgpt.com"].Values["token"] != "k2" {
		t.Fatalf("chatgpt.com: %v", sets["chatgpt.com"].Values)
	}
}

func TestReadDomainsDomainHashPrefixSchema(t *testing.T) {
	key := deriveAESKey("pw", 1)
	plain := append(make([]byte, 32), []byte("v24-value")...)
	for i := 0; i < 32; i++ {
		plain[i] = byte(i)
	}
	enc := encryptForTest(t, key, plain)

	dbPath := writeCookieDB(t, "24", []cookieRow{
		{hostKey: "example.com", name: "a", encryptedValue: enc},
	})

	sets, err := readDomains(context.Background(), dbPath, key, []string{"example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if got := sets["example.com"].Values["a"]; got != "v24-value" {
		t.Fatalf("want %q got %q", "v24-value", got)
	}
}

func TestSnapshotCleanupRemovesTempCopy(t *testing.T) {
	src := filepath.Join(t.TempDir(), "Cookies")
	if err := os.WriteFile(src, []byte("not-really-sqlite"), 0o600); err != nil {
		t.Fatal(err)
	}

	snapshot, cleanup, err := snapshotDB(src)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(snapshot); err != nil {
		t.Fatalf("snapshot missing before cleanup: %v", err)
	}
	cleanup()
	if _, err := os.Stat(snapshot); !os.IsNotExist(err) {
		t.Fatalf("snapshot still present after cleanup")
	}
}
