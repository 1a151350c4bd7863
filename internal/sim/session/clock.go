package session

// clock accumulates simulated minutes from two pathways: batches of
// movement ticks while the player is actually moving, and the time costs
// of resolved choices. Minutes never decrease.
type clock struct {
	minutes        int
	limit          int
	moveTicks      int
	ticksPerMinute int
}

// tickMove counts one movement tick; every ticksPerMinute of them costs a
// simulated minute.
func (c *clock) tickMove() {
	c.moveTicks++
	if c.moveTicks >= c.ticksPerMinute {
		c.moveTicks = 0
		c.minutes++
	}
}

func (c *clock) add(minutes int) {
	if minutes > 0 {
		c.minutes += minutes
	}
}

func (c *clock) hasReachedLimit() bool {
	return c.minutes >= c.limit
}
