package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"testing"
)

// encryptForTest builds a v10 blob the way the browser does: PKCS7 pad,
// AES-128-CBC with the fixed IV, 3-byte version prefix.
func encryptForTest(t *testing.T, key []byte, plain []byte) []byte {
	t.Helper()

	padLen := aes.BlockSize - len(plain)%aes.BlockSize
	padded := append(bytes.Clone(plain), bytes.Repeat([]byte{byte(padLen)}, padLen)...)

	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, []byte(cbcIV)).CryptBlocks(out, padded)
	return append([]byte("v10"), out...)
}

func TestDecryptValueRoundTrip(t *testing.T) {
	key := deriveAESKey("pw", 1)
	enc := encryptForTest(t, key, []byte("hello"))

	if got := decryptValue(enc, key, 20); got != "hello" {
		t.Fatalf("want %q got %q", "hello", got)
	}
}

func TestDecryptValueStripsDomainHashPrefix(t *testing.T) {
	key := deriveAESKey("pw", 1)
	plain := append(bytes.Repeat([]byte{0xAA}, 32), []byte("hello")...)
	enc := encryptForTest(t, key, plain)

	if got := decryptValue(enc, key, 24); got != "hello" {
		t.Fatalf("want %q got %q", "hello", got)
	}
	// Same blob under an older schema keeps the prefix bytes, which are not
	// valid UTF-8 text here, so decoding drops the cookie instead.
	if got := decryptValue(enc, key, 23); got == "hello" {
		t.Fatalf("version<24 must not strip the prefix")
	}
}

func TestDecryptValueUnknownVersionTag(t *testing.T) {
	key := deriveAESKey("pw", 1)

	for _, blob := range [][]byte{
		[]byte("v99aaaaaaaaaaaaaaaa"),
		[]byte("xyzaaaaaaaaaaaaaaaa"),
		[]byte("v10"),
		[]byte("v1"),
		nil,
	} {
		if got := decryptValue(blob, key, 24); got != "" {
			t.Fatalf("want empty for %q, got %q", blob, got)
		}
	}
}

func TestDecryptValueWrongKey(t *testing.T) {
	key := deriveAESKey("pw", 1)
	other := deriveAESKey("other", 1)
	enc := encryptForTest(t, key, []byte("hello"))

	if got := decryptValue(enc, other, 20); got == "hello" {
		t.Fatal("wrong key must not round-trip")
	}
}

func TestRemovePKCS7Padding(t *testing.T) {
	if _, ok := removePKCS7Padding([]byte{1, 2, 3, 17}); ok {
		t.Fatal("padding longer than a block must fail")
	}
	if _, ok := removePKCS7Padding([]byte{2, 2, 3, 2}); !ok {
		t.Fatal("valid padding rejected")
	}
	if _, ok := removePKCS7Padding([]byte{0}); ok {
		t.Fatal("zero padding must fail")
	}
}

func TestDecodeCookieValue(t *testing.T) {
	if got := decodeCookieValue([]byte{0x01, 0x02, 'o', 'k'}); got != "ok" {
		t.Fatalf("want %q got %q", "ok", got)
	}
	if got := decodeCookieValue([]byte{0xff, 0xfe}); got != "" {
		t.Fatalf("want empty for invalid UTF-8, got %q", got)
	}
}
