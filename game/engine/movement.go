package engine

import (
	"fmt"
	"sort"
	"time"
)

// pieceAt returns the rail at p; ok is false outside the map
func (s *SimState) pieceAt(p Position) (Piece, bool) {
	if p.Y < 0 || p.Y >= len(s.Track) {
		return Empty, false
	}
	if p.X < 0 || p.X >= len(s.Track[p.Y]) {
		return Empty, false
	}
	return Piece(s.Track[p.Y][p.X]), true
}

// LiveCarts returns the carts that have not crashed, in reading order
func (s *SimState) LiveCarts() []Cart {
	live := make([]Cart, 0, len(s.Carts))
	for _, c := range s.Carts {
		if !c.Crashed {
			live = append(live, c)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return readingLess(live[i].Pos, live[j].Pos)
	})
	return live
}

func readingLess(a, b Position) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

// Advance moves every live cart one step in reading order and resolves collisions
func (s *SimState) Advance(messages TrackMessages) (TickReport, error) {
	if s.Finished {
		return TickReport{}, ErrSimulationFinished
	}
	messages = withDefaultMessages(messages)

	s.Tick++
	report := TickReport{Tick: s.Tick}

	order := make([]int, 0, len(s.Carts))
	occupied := make(map[Position]int, len(s.Carts))
	for i, c := range s.Carts {
		if c.Crashed {
			continue
		}
		order = append(order, i)
		occupied[c.Pos] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return readingLess(s.Carts[order[a]].Pos, s.Carts[order[b]].Pos)
	})

	stopped := false
	for _, i := range order {
		cart := &s.Carts[i]
		if cart.Crashed {
			continue
		}

		from := cart.Pos
		if err := s.moveCart(cart); err != nil {
			s.Finished = true
			s.Derailed = true
			s.Message = fmt.Sprintf("%s [%v]", messages.Derailed, err)
			s.CartsRemaining = len(s.LiveCarts())
			report.CartsRemaining = s.CartsRemaining
			report.Finished = true
			return report, err
		}
		report.CartsMoved++
		delete(occupied, from)

		other, hit := occupied[cart.Pos]
		if !hit {
			occupied[cart.Pos] = i
			continue
		}

		// Collision: both carts leave the track
		victim := &s.Carts[other]
		crash := Crash{
			Tick:    s.Tick,
			Pos:     cart.Pos,
			CartIDs: []string{victim.ID, cart.ID},
		}
		victim.Crashed, victim.CrashTick = true, s.Tick
		cart.Crashed, cart.CrashTick = true, s.Tick
		delete(occupied, cart.Pos)

		s.Crashes = append(s.Crashes, crash)
		report.Crashes = append(report.Crashes, crash)
		if s.FirstCrash == nil {
			pos := crash.Pos
			s.FirstCrash = &pos
		}
		s.Message = fmt.Sprintf(messages.Crash, crash.Pos.X, crash.Pos.Y)

		if s.CrashMode == CrashModeStop {
			stopped = true
			break
		}
	}

	live := s.LiveCarts()
	s.CartsRemaining = len(live)
	report.CartsRemaining = len(live)

	switch {
	case stopped:
		s.Finished = true
	case len(live) == 1:
		s.Finished = true
		pos := live[0].Pos
		s.LastCart = &pos
		s.Message = fmt.Sprintf(messages.LastCart, pos.X, pos.Y)
	case len(live) == 0:
		s.Finished = true
		s.Message = messages.AllCrashed
	case len(report.Crashes) == 0:
		s.Message = fmt.Sprintf(messages.Running, s.Tick, len(live))
	}

	report.Finished = s.Finished
	report.LastCart = s.LastCart
	return report, nil
}

// moveCart steps a cart forward and turns it according to the rail it lands on
func (s *SimState) moveCart(cart *Cart) error {
	dx, dy := cart.Dir.Delta()
	next := Position{X: cart.Pos.X + dx, Y: cart.Pos.Y + dy}

	piece, ok := s.pieceAt(next)
	if !ok || piece == Empty {
		return fmt.Errorf("%w: %s left the track at %d,%d heading %s",
			ErrDerailed, cart.ID, next.X, next.Y, cart.Dir)
	}
	vertical := cart.Dir == Up || cart.Dir == Down
	if (piece == Horizontal && vertical) || (piece == Vertical && !vertical) {
		return fmt.Errorf("%w: %s hit a crossing rail %q at %d,%d heading %s",
			ErrDerailed, cart.ID, rune(piece), next.X, next.Y, cart.Dir)
	}

	cart.Pos = next

	switch piece {
	case CurveSlash:
		switch cart.Dir {
		case Up:
			cart.Dir = Right
		case Right:
			cart.Dir = Up
		case Down:
			cart.Dir = Left
		case Left:
			cart.Dir = Down
		}
	case CurveBack:
		switch cart.Dir {
		case Up:
			cart.Dir = Left
		case Left:
			cart.Dir = Up
		case Down:
			cart.Dir = Right
		case Right:
			cart.Dir = Down
		}
	case Intersection:
		cart.Dir = cart.NextTurn.Apply(cart.Dir)
		cart.NextTurn = cart.NextTurn.Next()
	}

	return nil
}

// AddTickToHistory adds a tick to the simulation history
func (s *SimState) AddTickToHistory(report TickReport) {
	entry := TickEntry{
		Tick:           report.Tick,
		CartsMoved:     report.CartsMoved,
		Crashes:        report.Crashes,
		CartsRemaining: report.CartsRemaining,
		Timestamp:      time.Now().Unix(),
		TickNumber:     s.TotalTicks + 1,
	}
	s.History = append(s.History, entry)
	if len(s.History) > MaxTickHistory {
		s.History = append([]TickEntry(nil), s.History[len(s.History)-MaxTickHistory:]...)
	}
	s.TotalTicks++
	s.CurrentTicks++
}
