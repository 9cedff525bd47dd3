package math

import (
	"errors"
	"testing"
)

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	got := x.Cross(y)
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestVec3Dot(t *testing.T) {
	got := Vec3{1, 2, 3}.Dot(Vec3{4, -5, 6})
	if got != 12 {
		t.Errorf("Vec3.Dot() = %v, want 12", got)
	}
}

func TestVec3Length(t *testing.T) {
	if got := (Vec3{2, 3, 6}).Length(); got != 7 {
		t.Errorf("Vec3.Length() = %v, want 7", got)
	}
}

func TestVec3Normalize(t *testing.T) {
	tests := []struct {
		name    string
		v       Vec3
		wantErr error
	}{
		{"unit x", Vec3{5, 0, 0}, nil},
		{"diagonal", Vec3{1, 1, 1}, nil},
		{"zero", Vec3{}, ErrDegenerateVector},
		{"below epsilon", Vec3{1e-7, 0, 0}, ErrDegenerateVector},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.v.Normalize()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Normalize() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if l := n.Length(); l < 0.999 || l > 1.001 {
				t.Errorf("Normalize().Length() = %v, want ~1", l)
			}
		})
	}
}

func TestVec3AngleTo(t *testing.T) {
	a, err := Vec3{1, 0, 0}.AngleTo(Vec3{0, 3, 0})
	if err != nil {
		t.Fatalf("AngleTo failed: %v", err)
	}
	if a < 1.5706 || a > 1.5709 {
		t.Errorf("AngleTo = %v, want pi/2", a)
	}

	if _, err := (Vec3{}).AngleTo(Vec3{1, 0, 0}); !errors.Is(err, ErrDegenerateVector) {
		t.Errorf("AngleTo(zero) error = %v, want ErrDegenerateVector", err)
	}
}

func TestVec3Lerp(t *testing.T) {
	got := Vec3{0, 0, 0}.Lerp(Vec3{10, -4, 2}, 0.5)
	want := Vec3{5, -2, 1}
	if got != want {
		t.Errorf("Lerp = %v, want %v", got, want)
	}
}

func TestVec3MinMax(t *testing.T) {
	a := Vec3{1, 5, -3}
	b := Vec3{2, -1, 0}
	if got := a.Min(b); got != (Vec3{1, -1, -3}) {
		t.Errorf("Min = %v", got)
	}
	if got := a.Max(b); got != (Vec3{2, 5, 0}) {
		t.Errorf("Max = %v", got)
	}
}

func TestVec2Normalize(t *testing.T) {
	n, err := Vec2{3, 4}.Normalize()
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if l := n.Length(); l < 0.999 || l > 1.001 {
		t.Errorf("Vec2.Normalize().Length() = %v, want ~1", l)
	}
	if _, err := (Vec2{}).Normalize(); !errors.Is(err, ErrDegenerateVector) {
		t.Errorf("Vec2{}.Normalize() error = %v", err)
	}
}

func TestVec2Cross(t *testing.T) {
	if got := (Vec2{1, 0}).Cross(Vec2{0, 1}); got != 1 {
		t.Errorf("Vec2.Cross() = %v, want 1", got)
	}
}
