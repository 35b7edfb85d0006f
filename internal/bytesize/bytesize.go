// Package bytesize provides a byte count type that decodes from
// human-readable configuration values such as "64KiB", "1MB" or "65536".
package bytesize

import (
	"fmt"
	"strings"

	units "github.com/docker/go-units"
)

// ByteSize is a size in bytes.
//
// Binary suffixes (Ki, KiB, Mi, MiB, ...) multiply by 1024; bare decimal
// suffixes (K, KB, M, MB, ...) multiply by 1000.
type ByteSize int64

const (
	B   ByteSize = 1
	KB  ByteSize = 1000 * B
	MB  ByteSize = 1000 * KB
	GB  ByteSize = 1000 * MB
	KiB ByteSize = 1024 * B
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
)

// Parse converts a human-readable size into a ByteSize.
func Parse(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	var (
		n   int64
		err error
	)
	if strings.ContainsAny(s, "iI") {
		// go-units only knows the long binary forms (KiB, MiB, ...).
		binary := s
		if strings.HasSuffix(binary, "i") || strings.HasSuffix(binary, "I") {
			binary += "B"
		}
		n, err = units.RAMInBytes(binary)
	} else {
		n, err = units.FromHumanSize(s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative byte size %q", s)
	}
	return ByteSize(n), nil
}

// Int returns the size as an int, saturating at the platform maximum.
func (b ByteSize) Int() int {
	const maxInt = int64(^uint(0) >> 1)
	if int64(b) > maxInt {
		return int(maxInt)
	}
	return int(b)
}

// String renders the size with binary units, e.g. "64KiB".
func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}
