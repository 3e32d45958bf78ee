package engine

// NextIndex is (current + direction + n) mod n. direction is +1 or -1.
func NextIndex(current, direction, n int) int {
	if n <= 0 {
		return 0
	}
	return ((current+direction)%n + n) % n
}

// NextPlayerIndex is the seat that plays after the current one.
func (r *Room) NextPlayerIndex() int {
	return r.nextIndexFrom(r.CurrentPlayerIndex)
}

func (r *Room) nextIndexFrom(idx int) int {
	return NextIndex(idx, r.Direction, len(r.Players))
}

// advance moves the turn pointer steps seats and starts a new turn.
func (r *Room) advance(steps int) {
	for i := 0; i < steps; i++ {
		r.CurrentPlayerIndex = r.nextIndexFrom(r.CurrentPlayerIndex)
	}
	r.startTurn()
}

// moveTo hands the turn to a specific seat.
func (r *Room) moveTo(idx int) {
	r.CurrentPlayerIndex = idx
	r.startTurn()
}

func (r *Room) startTurn() {
	r.UnoCallRequired = false
	r.drewThisTurn = false
}

// reverse flips the direction of play.
func (r *Room) reverse() {
	r.Direction = -r.Direction
}
