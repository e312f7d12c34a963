package writer

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// guidChars - base-64 алфавит IFC, он отличается от RFC 4648.
const guidChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_$"

const guidLen = 22

// NewGUID возвращает новый сжатый GlobalId.
func NewGUID() string {
	return CompressGUID(uuid.New())
}

// CompressGUID кодирует 128 бит u в 22 цифры base-64, старшие первыми.
// Первая цифра несет только два старших бита.
func CompressGUID(u uuid.UUID) string {
	n := new(big.Int).SetBytes(u[:])
	base := big.NewInt(64)
	digit := new(big.Int)
	out := make([]byte, guidLen)
	for i := guidLen - 1; i >= 0; i-- {
		n.DivMod(n, base, digit)
		out[i] = guidChars[digit.Int64()]
	}
	return string(out)
}

// ExpandGUID обратна CompressGUID.
func ExpandGUID(s string) (uuid.UUID, error) {
	if len(s) != guidLen {
		return uuid.Nil, fmt.Errorf("guid %q: want %d characters", s, guidLen)
	}
	n := new(big.Int)
	base := big.NewInt(64)
	for i := 0; i < len(s); i++ {
		d := strings.IndexByte(guidChars, s[i])
		if d < 0 {
			return uuid.Nil, fmt.Errorf("guid %q: bad character %q", s, s[i])
		}
		n.Mul(n, base).Add(n, big.NewInt(int64(d)))
	}
	if n.BitLen() > 128 {
		return uuid.Nil, fmt.Errorf("guid %q: out of range", s)
	}
	var u uuid.UUID
	n.FillBytes(u[:])
	return u, nil
}
