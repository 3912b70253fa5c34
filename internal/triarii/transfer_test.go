package triarii

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransferCodes(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		name        string
		moving      int
		src, dst    string
		white       bool
		first       bool
		wantSrc     string
		wantDst     string
		wantUsed    int
		wantMoved   int
		wantTurnEnd bool
	}{
		{"whole stack onto empty", 6, "6w", "", true, true, "", "6w", 1, 6, true},
		{"partial onto empty", 2, "6w", "", true, true, "4w", "2w", 1, 2, false},
		{"merge with own stack", 2, "4b", "2b", false, true, "2b", "4b", 1, 2, false},
		{"pin costs double", 3, "3w", "1b", true, false, "", "3wP1b", 2, 3, false},
		{"pin on first action ends turn", 3, "3w", "1b", true, true, "", "3wP1b", 2, 3, true},
		{"oversized stack pinned by one", 1, "1w", "10b", true, false, "", "1wP10b", 1, 1, false},
		{"reinforce own pin", 2, "2w", "3wP1b", true, false, "", "5wP1b", 1, 2, false},
		{"counter pin", 6, "6w", "3bP1w", true, false, "", "7wP3b", 6, 6, false},
		{"clamp to stack size", 9, "4b", "", false, false, "", "4b", 1, 4, false},
		{"leave pinned stack behind", 3, "3wP1b", "", true, false, "1b", "3w", 1, 3, false},
		{"partial from pinning stack", 1, "3wP1b", "", true, false, "2wP1b", "1w", 1, 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := TransferCodes(tc.moving, tc.src, tc.dst, tc.white, tc.first, p)
			require.NoError(t, err)
			require.Equal(t, tc.wantSrc, got.Source)
			require.Equal(t, tc.wantDst, got.Dest)
			require.Equal(t, tc.wantUsed, got.Consumed)
			require.Equal(t, tc.wantMoved, got.Moved)
			require.Equal(t, tc.wantTurnEnd, got.TurnEnds)
		})
	}
}

func TestTransferErrors(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		name     string
		moving   int
		src, dst string
		white    bool
		want     error
	}{
		{"pinned by opponent", 1, "3bP1w", "", true, ErrInvalidMove},
		{"no own pieces", 1, "4b", "", true, ErrInvalidMove},
		{"empty source", 1, "", "", false, ErrInvalidMove},
		{"zero pieces", 0, "4w", "", true, ErrZeroMove},
		{"opponent too large", 3, "3w", "2b", true, ErrIllegalStacking},
		{"counter pin too small", 2, "2w", "3bP1w", true, ErrIllegalStacking},
		{"eight is not oversized", 15, "15w", "8b", true, ErrIllegalStacking},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := TransferCodes(tc.moving, tc.src, tc.dst, tc.white, true, p)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestTransferPolicyThresholds(t *testing.T) {
	p := DefaultPolicy()
	p.PinRatio = 3
	p.OversizeThreshold = 5

	_, err := TransferCodes(5, "5w", "2b", true, false, p)
	require.ErrorIs(t, err, ErrIllegalStacking)

	got, err := TransferCodes(6, "6w", "2b", true, false, p)
	require.NoError(t, err)
	require.Equal(t, 6, got.Consumed)

	got, err = TransferCodes(1, "1w", "6b", true, false, p)
	require.NoError(t, err)
	require.Equal(t, 1, got.Consumed)
	require.Equal(t, "1wP6b", got.Dest)
}

func TestTransferZeroPolicyPlaysDefaults(t *testing.T) {
	_, err := TransferCodes(3, "3w", "2b", true, false, Policy{})
	require.ErrorIs(t, err, ErrIllegalStacking)
}
