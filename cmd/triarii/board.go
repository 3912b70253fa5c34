package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/park285/triarii/pkg/triariidto"
)

const cellWidth = 7

// printBoard draws the snapshot as text, white's endzone on top.
func printBoard(w io.Writer, s triariidto.Snapshot) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s vs %s  [%s] v%d\n", s.ID, orDash(s.White), orDash(s.Black), s.Status, s.Version)
	fmt.Fprintf(&b, "white endzone %d/%d\n", s.WhiteInEndzone, s.EndzoneTarget)

	b.WriteString("   ")
	for col := range s.Board {
		fmt.Fprintf(&b, "%-*d", cellWidth, col)
	}
	b.WriteByte('\n')
	for row, cells := range s.Board {
		fmt.Fprintf(&b, "%d  ", row)
		for col, code := range cells {
			if code == "_" {
				code = "."
			}
			if s.Selected != nil && s.Selected.Row == row && s.Selected.Col == col {
				code = "[" + code + "]"
			}
			fmt.Fprintf(&b, "%-*s", cellWidth, code)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "black endzone %d/%d\n", s.BlackInEndzone, s.EndzoneTarget)

	switch {
	case s.Outcome != "" && s.Outcome != "ongoing":
		fmt.Fprintf(&b, "result: %s", s.Outcome)
		if s.Reason != "" {
			fmt.Fprintf(&b, " by %s", strings.ReplaceAll(s.Reason, "_", " "))
		}
		b.WriteByte('\n')
	case s.Status == "WAITING":
		b.WriteString("waiting for an opponent\n")
	default:
		fmt.Fprintf(&b, "%s to move", s.ToMove)
		if s.PiecesRemaining != nil {
			fmt.Fprintf(&b, ", %d left", *s.PiecesRemaining)
		}
		b.WriteByte('\n')
	}
	_, _ = io.WriteString(w, b.String())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
