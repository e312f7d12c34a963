package geom

// ============================================================
// Placement
// ============================================================

// Placement - жесткое преобразование: ортонормированный базис (XDir, YDir, ZDir)
// в точке Base. Нулевое значение ведет себя как тождественное.
type Placement struct {
	Base Vector `json:"base"`
	XDir Vector `json:"xdir"`
	YDir Vector `json:"ydir"`
	ZDir Vector `json:"zdir"`
}

func Identity() Placement {
	return Placement{XDir: XAxis, YDir: YAxis, ZDir: ZAxis}
}

// Translation возвращает тождественный поворот, сдвинутый в base.
func Translation(base Vector) Placement {
	p := Identity()
	p.Base = base
	return p
}

// FromAxes строит placement из начала, направления x и направления z.
// Направление x делается ортогональным z, если оно еще не такое.
func FromAxes(origin, x, z Vector) Placement {
	z = z.Normalize()
	if z.IsZero() {
		z = ZAxis
	}
	x = x.Sub(z.Scale(x.Dot(z))).Normalize()
	if x.IsZero() {
		x = Perpendicular(z)
	}
	y := z.Cross(x).Normalize()
	return Placement{Base: origin, XDir: x, YDir: y, ZDir: z}
}

func (p Placement) axes() (Vector, Vector, Vector) {
	if p.XDir.IsZero() && p.YDir.IsZero() && p.ZDir.IsZero() {
		return XAxis, YAxis, ZAxis
	}
	return p.XDir, p.YDir, p.ZDir
}

// Rotate применяет только поворотную часть p.
func (p Placement) Rotate(v Vector) Vector {
	x, y, z := p.axes()
	return x.Scale(v.X).Add(y.Scale(v.Y)).Add(z.Scale(v.Z))
}

// MultVec переводит локальную точку в координаты родителя.
func (p Placement) MultVec(v Vector) Vector {
	return p.Base.Add(p.Rotate(v))
}

// Multiply returns p ∘ o: o is applied first, then p.
func (p Placement) Multiply(o Placement) Placement {
	ox, oy, oz := o.axes()
	return Placement{
		Base: p.MultVec(o.Base),
		XDir: p.Rotate(ox),
		YDir: p.Rotate(oy),
		ZDir: p.Rotate(oz),
	}
}

// Inverse возвращает преобразование, отменяющее p.
func (p Placement) Inverse() Placement {
	x, y, z := p.axes()
	inv := Placement{
		XDir: Vector{X: x.X, Y: y.X, Z: z.X},
		YDir: Vector{X: x.Y, Y: y.Y, Z: z.Y},
		ZDir: Vector{X: x.Z, Y: y.Z, Z: z.Z},
	}
	inv.Base = inv.Rotate(p.Base).Neg()
	return inv
}

// IsNull сообщает, является ли p тождественным преобразованием.
func (p Placement) IsNull() bool {
	x, y, z := p.axes()
	return p.Base.IsZero() && x.Equals(XAxis, Precision) && y.Equals(YAxis, Precision) && z.Equals(ZAxis, Precision)
}

func (p Placement) X() Vector {
	x, _, _ := p.axes()
	return x
}

func (p Placement) Z() Vector {
	_, _, z := p.axes()
	return z
}
