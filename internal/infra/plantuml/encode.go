package plantuml

import (
	"bytes"
	"compress/flate"
	"fmt"
	"strings"
)

const encodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

// Encode compresses source with raw deflate and encodes it with the PlantUML
// URL alphabet, the form expected in PlantUML server paths.
func Encode(source string) (string, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", fmt.Errorf("deflate: %w", err)
	}
	if _, err := w.Write([]byte(source)); err != nil {
		return "", fmt.Errorf("deflate: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("deflate: %w", err)
	}
	return encode64(buf.Bytes()), nil
}

// encode64 packs 3 bytes into 4 symbols. A short final group is zero padded,
// so the output length is always a multiple of 4.
func encode64(data []byte) string {
	var sb strings.Builder
	sb.Grow((len(data) + 2) / 3 * 4)
	for i := 0; i < len(data); i += 3 {
		var b1, b2, b3 byte
		b1 = data[i]
		if i+1 < len(data) {
			b2 = data[i+1]
		}
		if i+2 < len(data) {
			b3 = data[i+2]
		}
		sb.WriteByte(encodeAlphabet[b1>>2])
		sb.WriteByte(encodeAlphabet[((b1&0x3)<<4)|(b2>>4)])
		sb.WriteByte(encodeAlphabet[((b2&0xF)<<2)|(b3>>6)])
		sb.WriteByte(encodeAlphabet[b3&0x3F])
	}
	return sb.String()
}

// Decode reverses Encode. It is used to check server paths in tests and tooling.
func Decode(encoded string) (string, error) {
	raw := make([]byte, 0, len(encoded)/4*3)
	for i := 0; i+3 < len(encoded); i += 4 {
		var c [4]byte
		for j := 0; j < 4; j++ {
			idx := strings.IndexByte(encodeAlphabet, encoded[i+j])
			if idx < 0 {
				return "", fmt.Errorf("invalid symbol %q at %d", encoded[i+j], i+j)
			}
			c[j] = byte(idx)
		}
		raw = append(raw,
			c[0]<<2|c[1]>>4,
			(c[1]&0xF)<<4|c[2]>>2,
			(c[2]&0x3)<<6|c[3],
		)
	}
	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		return "", fmt.Errorf("inflate: %w", err)
	}
	return out.String(), nil
}
