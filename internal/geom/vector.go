package geom

import "math"

// ============================================================
// Vectors
// ============================================================

// Precision - расстояние, ниже которого точки считаются совпадающими.
const Precision = 1e-7

type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func V(x, y, z float64) Vector {
	return Vector{X: x, Y: y, Z: z}
}

var (
	XAxis = Vector{X: 1}
	YAxis = Vector{Y: 1}
	ZAxis = Vector{Z: 1}
)

func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vector) Scale(f float64) Vector {
	return Vector{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}

func (v Vector) Neg() Vector {
	return Vector{X: -v.X, Y: -v.Y, Z: -v.Z}
}

func (v Vector) Dot(o Vector) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vector) Cross(o Vector) Vector {
	return Vector{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

func (v Vector) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalize возвращает единичный вектор v или сам v, если длина нулевая.
func (v Vector) Normalize() Vector {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

func (v Vector) IsZero() bool {
	return v.Length() <= Precision
}

func (v Vector) Equals(o Vector, tol float64) bool {
	return v.Sub(o).Length() <= tol
}

// Rounded округляет каждую компоненту до заданного числа знаков.
func (v Vector) Rounded(decimals int) Vector {
	p := math.Pow(10, float64(decimals))
	r := func(f float64) float64 {
		out := math.Round(f*p) / p
		if out == 0 {
			return 0
		}
		return out
	}
	return Vector{X: r(v.X), Y: r(v.Y), Z: r(v.Z)}
}

// Angle возвращает угол от u к v в радианах. Результат отрицательный,
// если u x v направлен против normal.
func Angle(u, v, normal Vector) float64 {
	lu, lv := u.Length(), v.Length()
	if lu == 0 || lv == 0 {
		return 0
	}
	dp := u.Dot(v) / lu / lv
	dp = math.Max(-1, math.Min(1, dp))
	ang := math.Acos(dp)
	if normal.Dot(u.Cross(v)) >= 0 {
		return ang
	}
	return -ang
}

// Perpendicular возвращает какой-нибудь единичный вектор, ортогональный v.
func Perpendicular(v Vector) Vector {
	n := v.Normalize()
	ref := XAxis
	if math.Abs(n.Dot(ref)) > 0.9 {
		ref = YAxis
	}
	return n.Cross(ref).Normalize()
}

// rotateAround поворачивает v вокруг единичной оси k на угол a (Родригес).
func rotateAround(v, k Vector, a float64) Vector {
	cos, sin := math.Cos(a), math.Sin(a)
	return v.Scale(cos).
		Add(k.Cross(v).Scale(sin)).
		Add(k.Scale(k.Dot(v) * (1 - cos)))
}
