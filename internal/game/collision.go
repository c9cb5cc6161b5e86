package game

// Rect is an axis-aligned bounding box.
type Rect struct {
	X, Y, W, H float64
}

// Collides reports whether two boxes overlap by positive area. All four
// inequalities are strict, so boxes touching only at an edge do not
// collide.
func Collides(a, b Rect) bool {
	return a.X < b.X+b.W &&
		a.X+a.W > b.X &&
		a.Y < b.Y+b.H &&
		a.Y+a.H > b.Y
}

func (p PlayerBody) Bounds() Rect {
	return Rect{X: p.X, Y: p.Y, W: PlayerWidth, H: PlayerHeight}
}

func (o Obstacle) Bounds() Rect {
	return Rect{X: o.X, Y: o.Y, W: o.Width, H: o.Height}
}
