package triarii

import "fmt"

// TransferResult is the effect of moving pieces from one square onto another.
type TransferResult struct {
	Source Square
	Dest   Square
	// Moved is the number of pieces actually moved after clamping to the
	// mover's stack.
	Moved int
	// Consumed is the budget spent on the destination.
	Consumed int
	// TurnEnds is set when the whole stack moved as the first action.
	TurnEnds bool
}

// Transfer moves up to moving pieces of mover from src onto dst.
func Transfer(moving int, src, dst Square, mover Color, firstAction bool, p Policy) (TransferResult, error) {
	if moving < 1 {
		return TransferResult{}, ErrZeroMove
	}
	if src.PinnedBy(mover.Opponent()) {
		return TransferResult{}, fmt.Errorf("%w: stack is pinned", ErrInvalidMove)
	}
	own := src.Count(mover)
	if own == 0 {
		return TransferResult{}, fmt.Errorf("%w: no %s pieces on square", ErrInvalidMove, mover)
	}
	if moving > own {
		moving = own
	}

	cost, err := stackingCost(moving, dst, mover, p.withDefaults())
	if err != nil {
		return TransferResult{}, err
	}

	return TransferResult{
		Source:   removeStack(moving, src, mover),
		Dest:     addStack(moving, dst, mover),
		Moved:    moving,
		Consumed: cost,
		TurnEnds: firstAction && moving == own,
	}, nil
}

func stackingCost(moving int, dst Square, mover Color, p Policy) (int, error) {
	if dst.PinnedBy(mover) {
		return 1, nil
	}
	opp := dst.Count(mover.Opponent())
	switch {
	case opp == 0:
		return 1, nil
	case opp > p.OversizeThreshold:
		return 1, nil
	case opp*p.PinRatio <= moving:
		return opp * p.PinRatio, nil
	}
	return 0, fmt.Errorf("%w: %d pieces cannot pin a stack of %d", ErrIllegalStacking, moving, opp)
}

// addStack merges the moving pieces into dst. Any opposing pieces left on the
// square end up pinned by the mover, including a former pinner.
func addStack(moving int, dst Square, mover Color) Square {
	dst.setCount(mover, dst.Count(mover)+moving)
	if dst.Count(mover.Opponent()) > 0 {
		dst.Pin = pinOf(mover)
	} else {
		dst.Pin = PinNone
	}
	return dst
}

func removeStack(moving int, src Square, mover Color) Square {
	left := src.Count(mover) - moving
	if left < 0 {
		left = 0
	}
	src.setCount(mover, left)
	if left == 0 {
		src.Pin = PinNone
	}
	return src
}

// CodeTransfer is Transfer over square codes. Empty codes mean empty squares.
type CodeTransfer struct {
	Dest     string
	Source   string
	Moved    int
	Consumed int
	TurnEnds bool
}

// TransferCodes applies Transfer to encoded squares.
func TransferCodes(moving int, srcCode, dstCode string, moverIsWhite, firstAction bool, p Policy) (CodeTransfer, error) {
	src, err := ParseSquare(srcCode)
	if err != nil {
		return CodeTransfer{}, err
	}
	dst, err := ParseSquare(dstCode)
	if err != nil {
		return CodeTransfer{}, err
	}
	mover := Black
	if moverIsWhite {
		mover = White
	}
	res, err := Transfer(moving, src, dst, mover, firstAction, p)
	if err != nil {
		return CodeTransfer{}, err
	}
	out := CodeTransfer{Moved: res.Moved, Consumed: res.Consumed, TurnEnds: res.TurnEnds}
	out.Dest, _ = FormatSquare(res.Dest)
	out.Source, _ = FormatSquare(res.Source)
	return out, nil
}
