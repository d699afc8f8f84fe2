package vault

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite" // SQLite driver (pure Go).
)

type cookieRow struct {
	hostKey        string
	name           string
	value          string
	encryptedValue []byte
}

// snapshotDB copies the live cookie database (and WAL sidecars, which may
// hold recent writes) into a private temp dir. cleanup always removes it.
func snapshotDB(dbPath string) (snapshotPath string, cleanup func(), err error) {
	dir, err := os.MkdirTemp("", "recollect-cookies-")
	if err != nil {
		return "", nil, err
	}
	cleanup = func() { _ = os.RemoveAll(dir) }

	target := filepath.Join(dir, "Cookies")
	if err := copyFile(dbPath, target); err != nil {
		cleanup()
		return "", nil, err
	}
	_ = copyFileIfExists(dbPath+"-wal", target+"-wal")
	_ = copyFileIfExists(dbPath+"-shm", target+"-shm")

	return target, cleanup, nil
}

func openReadOnly(ctx context.Context, snapshotPath string) (*sql.DB, error) {
	dsn := "file:" + filepath.ToSlash(snapshotPath) + "?mode=ro"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// metaVersion reads the store's schema version; 0 when unknown. The version
// decides whether decrypted values carry the domain-hash prefix.
func metaVersion(ctx context.Context, db *sql.DB) int64 {
	var value string
	if err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'version'`).Scan(&value); err != nil {
		return 0
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func readCookieRows(ctx context.Context, db *sql.DB, domains []string) ([]cookieRow, error) {
	if len(domains) == 0 {
		return nil, nil
	}

	query := `SELECT host_key, name, value, encrypted_value FROM cookies WHERE host_key IN (`
	args := make([]any, 0, 2*len(domains))
	for i, d := range domains {
		if i > 0 {
			query += ", "
		}
		query += "?, ?"
		args = append(args, d, "."+d)
	}
	query += ")"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []cookieRow
	for rows.Next() {
		var r cookieRow
		var encrypted []byte
		if err := rows.Scan(&r.hostKey, &r.name, &r.value, &encrypted); err != nil {
			return nil, err
		}
		r.encryptedValue = encrypted
		out = append(out, r)
	}
	return out, rows.Err()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

func copyFileIfExists(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return copyFile(src, dst)
}
