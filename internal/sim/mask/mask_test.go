package mask

import (
	"image"
	"image/color"
	"testing"
)

func TestFromImage_AllChannelsBelowThresholdIsWall(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 1))
	img.Set(0, 0, color.RGBA{R: 0, G: 0, B: 0, A: 255})     // wall
	img.Set(1, 0, color.RGBA{R: 39, G: 39, B: 39, A: 255})  // just below threshold: wall
	img.Set(2, 0, color.RGBA{R: 40, G: 0, B: 0, A: 255})    // one channel at threshold: floor
	img.Set(3, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	m := FromImage(img, 40)
	want := []bool{true, true, false, false}
	for x, w := range want {
		if got := m.Wall(x, 0); got != w {
			t.Fatalf("Wall(%d,0) = %v, want %v", x, got, w)
		}
	}
}

func TestFromImage_NormalizesBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 10, 14, 12))
	img.Set(11, 10, color.RGBA{A: 255}) // black pixel at offset (1,0)

	m := FromImage(img, 40)
	if w, h := m.Size(); w != 4 || h != 2 {
		t.Fatalf("size = %dx%d, want 4x2", w, h)
	}
	if !m.Wall(1, 0) {
		t.Fatalf("expected wall at translated (1,0)")
	}
	if m.Wall(0, 0) {
		t.Fatalf("unexpected wall at (0,0)")
	}
}

func TestWall_OutOfBoundsIsAlwaysWall(t *testing.T) {
	m := Open(8, 8)
	cases := [][2]int{{-1, 0}, {0, -1}, {8, 0}, {0, 8}, {-100, -100}, {1000, 1000}}
	for _, c := range cases {
		if !m.Wall(c[0], c[1]) {
			t.Fatalf("Wall(%d,%d) = false, want wall", c[0], c[1])
		}
	}
	if m.Wall(0, 0) || m.Wall(7, 7) {
		t.Fatalf("in-bounds pixels of an open mask should be floor")
	}
}

func TestSetWall_IgnoresOutOfRange(t *testing.T) {
	m := Open(4, 4)
	m.SetWall(-1, 2)
	m.SetWall(2, 99)
	m.SetWall(2, 2)
	if !m.Wall(2, 2) {
		t.Fatalf("SetWall(2,2) did not take")
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if (x != 2 || y != 2) && m.Wall(x, y) {
				t.Fatalf("stray wall at (%d,%d)", x, y)
			}
		}
	}
}
