package game

import "testing"

func TestCollidesOverlap(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 40, H: 40}
	b := Rect{X: 39, Y: 39, W: 40, H: 40}
	if !Collides(a, b) {
		t.Fatalf("expected overlap of positive area to collide")
	}
}

func TestCollidesEdgeContactIsNotCollision(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 40, H: 40}
	cases := []struct {
		name string
		b    Rect
	}{
		{"right edge", Rect{X: 40, Y: 0, W: 40, H: 40}},
		{"left edge", Rect{X: -40, Y: 0, W: 40, H: 40}},
		{"bottom edge", Rect{X: 0, Y: 40, W: 40, H: 40}},
		{"top edge", Rect{X: 0, Y: -40, W: 40, H: 40}},
		{"corner", Rect{X: 40, Y: 40, W: 40, H: 40}},
	}
	for _, tc := range cases {
		if Collides(a, tc.b) {
			t.Errorf("%s: touching boxes must not collide", tc.name)
		}
	}
}

func TestCollidesSymmetric(t *testing.T) {
	pairs := []struct {
		a, b Rect
	}{
		{Rect{0, 0, 40, 40}, Rect{20, 20, 40, 40}},
		{Rect{0, 0, 40, 40}, Rect{100, 100, 40, 40}},
		{Rect{0, 0, 40, 40}, Rect{40, 0, 40, 40}},
	}
	for _, p := range pairs {
		if Collides(p.a, p.b) != Collides(p.b, p.a) {
			t.Errorf("Collides(%v,%v) not symmetric", p.a, p.b)
		}
	}
}

func TestPlayerAndObstacleBounds(t *testing.T) {
	p := PlayerBody{X: 100, Y: 300}
	if got := p.Bounds(); got != (Rect{100, 300, PlayerWidth, PlayerHeight}) {
		t.Fatalf("player bounds = %v", got)
	}
	o := Obstacle{X: 500, Y: ObstacleY, Width: 40, Height: 75}
	if got := o.Bounds(); got != (Rect{500, ObstacleY, 40, 75}) {
		t.Fatalf("obstacle bounds = %v", got)
	}
}
