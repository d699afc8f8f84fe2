package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1" //nolint:gosec // Chromium's PBKDF2 scheme ("saltysalt", SHA1) is fixed by the browser.
	"unicode/utf8"

	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfSalt = "saltysalt"
	cbcIV   = "                " // 16 spaces
	keyLen  = 16
)

// deriveAESKey runs the browser's own key derivation over the safe-storage
// passphrase.
func deriveAESKey(password string, iterations int) []byte {
	return pbkdf2.Key([]byte(password), []byte(kdfSalt), iterations, keyLen, sha1.New)
}

// decryptValue decrypts one v10 AES-128-CBC cookie blob. Any failure — an
// unrecognized version tag, short input, bad padding, non-UTF8 plaintext —
// yields "", so one bad cookie never aborts the rest of the read.
func decryptValue(encrypted []byte, key []byte, metaVersion int64) string {
	if len(encrypted) <= 3 {
		return ""
	}
	if string(encrypted[:3]) != "v10" {
		return ""
	}

	ciphertext := encrypted[3:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return ""
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return ""
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, []byte(cbcIV)).CryptBlocks(plain, ciphertext)

	plain, ok := removePKCS7Padding(plain)
	if !ok {
		return ""
	}

	// Schema version >= 24 prefixes the plaintext with a 32-byte SHA-256 of
	// the cookie's domain.
	if metaVersion >= 24 {
		if len(plain) < 32 {
			return ""
		}
		plain = plain[32:]
	}

	return decodeCookieValue(plain)
}

func removePKCS7Padding(b []byte) ([]byte, bool) {
	if len(b) == 0 {
		return b, true
	}
	padLen := int(b[len(b)-1])
	if padLen <= 0 || padLen > aes.BlockSize || padLen > len(b) {
		return nil, false
	}
	for _, p := range b[len(b)-padLen:] {
		if int(p) != padLen {
			return nil, false
		}
	}
	return b[:len(b)-padLen], true
}

func decodeCookieValue(b []byte) string {
	b = stripLeadingControlBytes(b)
	if !utf8.Valid(b) {
		return ""
	}
	return string(b)
}

func stripLeadingControlBytes(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] < 0x20 {
		i++
	}
	return bytes.Clone(b[i:])
}
