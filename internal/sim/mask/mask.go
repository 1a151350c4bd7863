// Package mask holds the walkability bitmap derived from the map's
// collision image. A pixel is a wall iff all three color channels fall
// below the configured darkness threshold; anything outside the image is
// treated as wall.
package mask

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
)

type Mask struct {
	width  int
	height int
	wall   []bool
}

func Load(path string, threshold uint8) (*Mask, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, threshold)
}

func Decode(r io.Reader, threshold uint8) (*Mask, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("collision mask: %w", err)
	}
	return FromImage(img, threshold), nil
}

func FromImage(img image.Image, threshold uint8) *Mask {
	b := img.Bounds()
	m := &Mask{
		width:  b.Dx(),
		height: b.Dy(),
		wall:   make([]bool, b.Dx()*b.Dy()),
	}
	t := uint32(threshold) << 8 // RGBA() returns 16-bit channels
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if r < t && g < t && bl < t {
				m.wall[y*m.width+x] = true
			}
		}
	}
	return m
}

// Open builds a fully walkable mask, for tests and headless runs.
func Open(width, height int) *Mask {
	return &Mask{width: width, height: height, wall: make([]bool, width*height)}
}

// SetWall marks a single pixel as wall. Out-of-range coordinates are ignored.
func (m *Mask) SetWall(x, y int) {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return
	}
	m.wall[y*m.width+x] = true
}

func (m *Mask) Size() (width, height int) { return m.width, m.height }

// Wall reports whether the pixel blocks movement. Out-of-bounds is always wall.
func (m *Mask) Wall(x, y int) bool {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return true
	}
	return m.wall[y*m.width+x]
}
