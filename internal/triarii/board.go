package triarii

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is the board edge length.
const Size = 6

// Coord addresses a cell. Row 0 is black's home row, row Size-1 white's.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// OnBoard reports whether c is inside the grid.
func (c Coord) OnBoard() bool {
	return c.Row >= 0 && c.Row < Size && c.Col >= 0 && c.Col < Size
}

// Step returns the neighbouring coordinate in direction d.
func (c Coord) Step(d Direction) Coord {
	switch d {
	case Up:
		c.Row--
	case Down:
		c.Row++
	case Left:
		c.Col--
	case Right:
		c.Col++
	}
	return c
}

func (c Coord) String() string { return strconv.Itoa(c.Row) + "," + strconv.Itoa(c.Col) }

// ParseCoord reads the "row,col" form.
func ParseCoord(s string) (Coord, error) {
	r, c, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return Coord{}, fmt.Errorf("bad coordinate %q", s)
	}
	row, err := strconv.Atoi(strings.TrimSpace(r))
	if err != nil {
		return Coord{}, fmt.Errorf("bad coordinate %q", s)
	}
	col, err := strconv.Atoi(strings.TrimSpace(c))
	if err != nil {
		return Coord{}, fmt.Errorf("bad coordinate %q", s)
	}
	return Coord{Row: row, Col: col}, nil
}

// Direction is one of the four orthogonal steps.
type Direction byte

const (
	Up    Direction = 'u'
	Down  Direction = 'd'
	Left  Direction = 'l'
	Right Direction = 'r'
)

func (d Direction) String() string { return string(d) }

// ParseDirection accepts u/d/l/r and the long names.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "u", "up":
		return Up, nil
	case "d", "down":
		return Down, nil
	case "l", "left":
		return Left, nil
	case "r", "right":
		return Right, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// Board is the 6×6 grid, indexed [row][col].
type Board [Size][Size]Square

// At returns the square at c. c must be on the board.
func (b *Board) At(c Coord) Square { return b[c.Row][c.Col] }

// Set replaces the square at c. c must be on the board.
func (b *Board) Set(c Coord, s Square) { b[c.Row][c.Col] = s }

// Count sums the pieces of color c on the board.
func (b *Board) Count(c Color) int {
	n := 0
	for r := 0; r < Size; r++ {
		for col := 0; col < Size; col++ {
			n += b[r][col].Count(c)
		}
	}
	return n
}

// InitialBoard returns the starting arrangement: stacks of 6, 4 and 2 per
// side on alternating cells, 36 pieces each.
func InitialBoard() Board {
	var b Board
	stacks := [3]int{6, 4, 2}
	for i, n := range stacks {
		// black rows 0..2, white rows 5..3
		for col := 0; col < Size; col++ {
			if col%2 == (i+1)%2 {
				b[i][col] = Square{Black: n}
			}
			if col%2 == i%2 {
				b[Size-1-i][col] = Square{White: n}
			}
		}
	}
	return b
}
