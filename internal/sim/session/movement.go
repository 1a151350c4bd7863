package session

import "math"

// systemMovement advances the player along the current intent vector,
// resolving each axis independently against the collision mask so the
// player can slide along walls. Reports whether the position changed.
func (s *Session) systemMovement() bool {
	dx, dy := s.intentX, s.intentY
	length := math.Hypot(dx, dy)
	if length == 0 {
		return false
	}
	dx /= length
	dy /= length

	dt := 1.0 / float64(s.cfg.TickRateHz)
	stepX := dx * s.cfg.MoveSpeed * dt
	stepY := dy * s.cfg.MoveSpeed * dt

	oldX, oldY := s.x, s.y
	if nx := s.x + stepX; stepX != 0 && s.passable(nx, s.y) {
		s.x = nx
	}
	if ny := s.y + stepY; stepY != 0 && s.passable(s.x, ny) {
		s.y = ny
	}
	return s.x != oldX || s.y != oldY
}

// passable samples the mask at the player center and the four cardinal
// points of the player circle. The mask treats out-of-bounds as wall, so
// the map edge needs no separate clamp.
func (s *Session) passable(x, y float64) bool {
	r := s.cfg.PlayerRadius
	points := [5][2]float64{
		{x, y},
		{x - r, y},
		{x + r, y},
		{x, y - r},
		{x, y + r},
	}
	for _, p := range points {
		if s.mask.Wall(int(math.Floor(p[0])), int(math.Floor(p[1]))) {
			return false
		}
	}
	return true
}
