package geom

import (
	"errors"
	"fmt"
	"math"
)

// ============================================================
// Healing
// ============================================================

var (
	ErrOpenShell  = errors.New("shell is not closed")
	ErrEmptyShell = errors.New("shell has no faces")
)

// Shell - набор граней, которые должны замыкать объем.
type Shell struct {
	Faces []Face
}

type edgeKey struct {
	a, b  [3]int64
	curve [3]int64
}

func quantize(v Vector) [3]int64 {
	const q = 1e6
	return [3]int64{int64(math.Round(v.X * q)), int64(math.Round(v.Y * q)), int64(math.Round(v.Z * q))}
}

func less(a, b [3]int64) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func keyOf(e Edge) edgeKey {
	a, b := quantize(e.Start), quantize(e.End)
	if less(b, a) {
		a, b = b, a
	}
	k := edgeKey{a: a, b: b}
	if e.IsCurved() {
		k.curve = quantize(e.Center)
	}
	return k
}

// MakeShell успешен, только если каждое ребро общее ровно для двух граней.
func MakeShell(faces []Face) (Shell, error) {
	if len(faces) == 0 {
		return Shell{}, ErrEmptyShell
	}
	counts := make(map[edgeKey]int)
	for _, f := range faces {
		for _, w := range f.Wires() {
			for _, e := range w.Edges {
				counts[keyOf(e)]++
			}
		}
	}
	for k, n := range counts {
		if n != 2 {
			return Shell{}, fmt.Errorf("%w: edge %v-%v used by %d faces", ErrOpenShell, k.a, k.b, n)
		}
	}
	return Shell{Faces: faces}, nil
}

func MakeSolid(sh Shell) (Solid, error) {
	if len(sh.Faces) == 0 {
		return Solid{}, ErrEmptyShell
	}
	return Solid{Faces: sh.Faces}, nil
}
