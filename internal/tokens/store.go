package tokens

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"unicode/utf16"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// scanStore snapshots the IndexedDB key-value log to a temp dir (the live
// store may be locked by a running browser), opens it read-only and returns
// every value containing marker. The temp copy is always removed.
func scanStore(storePath string, marker string) ([][]byte, error) {
	snapshot, cleanup, err := snapshotStore(storePath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	db, err := leveldb.OpenFile(snapshot, &opt.Options{ReadOnly: true, ErrorIfMissing: true})
	if err != nil {
		// Chrome may leave the log without a clean MANIFEST; recovery still
		// yields a readable store.
		db, err = leveldb.RecoverFile(snapshot, nil)
		if err != nil {
			return nil, err
		}
	}
	defer func() { _ = db.Close() }()

	oneByte := []byte(marker)
	twoByte := encodeUTF16LE(marker)

	var out [][]byte
	iter := db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		value := iter.Value()
		if bytes.Contains(value, oneByte) || bytes.Contains(value, twoByte) {
			out = append(out, bytes.Clone(value))
		}
	}
	return out, iter.Error()
}

func snapshotStore(storePath string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "recollect-idb-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	entries, err := os.ReadDir(storePath)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() == "LOCK" {
			continue
		}
		if err := copyFile(filepath.Join(storePath, e.Name()), filepath.Join(dir, e.Name())); err != nil {
			cleanup()
			return "", nil, err
		}
	}
	return dir, cleanup, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}

func encodeUTF16LE(s string) []byte {
	codes := utf16.Encode([]rune(s))
	out := make([]byte, 2*len(codes))
	for i, c := range codes {
		binary.LittleEndian.PutUint16(out[2*i:], c)
	}
	return out
}

// IndexedDB values are V8 structured-clone records, not JSON. Rather than
// implement the whole format, we locate the property-name string inside the
// record and decode the single value token that follows it: 0x22 is a
// length-prefixed one-byte string, 0x63 a length-prefixed UTF-16LE string,
// 'N' a float64, 'I' a zigzag varint.
const (
	tagOneByteString byte = 0x22
	tagTwoByteString byte = 0x63
	tagDouble        byte = 'N'
	tagInt32         byte = 'I'
)

// extractString returns the string value stored directly after the named
// property inside a serialized record.
func extractString(buf []byte, prop string) (string, bool) {
	for _, pos := range propPositions(buf, prop) {
		if s, ok := decodeStringToken(buf[pos:]); ok {
			return s, true
		}
	}
	return "", false
}

// extractNumber returns the numeric value stored directly after the named
// property. Numbers stored as digit strings are accepted too.
func extractNumber(buf []byte, prop string) (float64, bool) {
	for _, pos := range propPositions(buf, prop) {
		rest := buf[pos:]
		if len(rest) == 0 {
			continue
		}
		switch rest[0] {
		case tagDouble:
			if len(rest) >= 9 {
				return math.Float64frombits(binary.LittleEndian.Uint64(rest[1:9])), true
			}
		case tagInt32:
			v, n := binary.Varint(rest[1:])
			if n > 0 {
				return float64(v), true
			}
		case tagOneByteString, tagTwoByteString:
			if s, ok := decodeStringToken(rest); ok {
				if f, ok := parseFloat(s); ok {
					return f, true
				}
			}
		}
	}
	return 0, false
}

// propPositions returns offsets just past every serialized occurrence of the
// property name, both one-byte and UTF-16 encoded.
func propPositions(buf []byte, prop string) []int {
	var out []int
	for _, needle := range [][]byte{[]byte(prop), encodeUTF16LE(prop)} {
		start := 0
		for {
			i := bytes.Index(buf[start:], needle)
			if i < 0 {
				break
			}
			out = append(out, start+i+len(needle))
			start += i + len(needle)
		}
	}
	return out
}

func decodeStringToken(rest []byte) (string, bool) {
	if len(rest) < 2 {
		return "", false
	}
	tag := rest[0]
	length, n := binary.Uvarint(rest[1:])
	if n <= 0 || length == 0 || length > uint64(len(rest)) {
		return "", false
	}
	payload := rest[1+n:]
	if uint64(len(payload)) < length {
		return "", false
	}
	payload = payload[:length]

	switch tag {
	case tagOneByteString:
		return string(payload), true
	case tagTwoByteString:
		if length%2 != 0 {
			return "", false
		}
		codes := make([]uint16, length/2)
		for i := range codes {
			codes[i] = binary.LittleEndian.Uint16(payload[2*i:])
		}
		return string(utf16.Decode(codes)), true
	default:
		return "", false
	}
}

func parseFloat(s string) (float64, bool) {
	var f float64
	var seen bool
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		f = f*10 + float64(r-'0')
		seen = true
	}
	return f, seen
}
