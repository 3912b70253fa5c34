package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/park285/triarii/pkg/triariidto"
)

func TestPrintBoard(t *testing.T) {
	board := make([][]string, 6)
	for i := range board {
		board[i] = []string{"_", "_", "_", "_", "_", "_"}
	}
	board[4][0] = "3w"
	left := 2
	snap := triariidto.Snapshot{
		ID: "g1", Status: "ACTIVE", White: "ana", Black: "bo",
		Board: board, EndzoneTarget: 6, ToMove: "white", Outcome: "ongoing",
		PiecesRemaining: &left, Selected: &triariidto.Coord{Row: 4, Col: 0},
	}
	var buf bytes.Buffer
	printBoard(&buf, snap)
	out := buf.String()
	for _, want := range []string{"ana vs bo", "[3w]", "white to move, 2 left", "black endzone 0/6"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	snap.Outcome, snap.Reason, snap.Status = "black", "four_or_fewer", "FINISHED"
	buf.Reset()
	printBoard(&buf, snap)
	if !strings.Contains(buf.String(), "result: black by four or fewer") {
		t.Fatalf("unexpected result line:\n%s", buf.String())
	}
}

func execute(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(viper.New())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--server", server}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandArgValidation(t *testing.T) {
	cases := [][]string{
		{"select", "g1", "1"},
		{"select", "g1", "x", "2"},
		{"move", "g1", "1"},
		{"move", "g1", "1", "2", "u", "all"},
		{"show"},
		{"board", "g1"},
		{"results", "ten"},
		{"bogus"},
	}
	for _, args := range cases {
		if _, err := execute(t, "http://127.0.0.1:0", args...); err == nil {
			t.Fatalf("execute(%v) succeeded, want an argument error", args)
		}
	}
}

func TestMoveRequiresToken(t *testing.T) {
	t.Setenv("TRIARII_TOKEN", "")
	_, err := execute(t, "http://127.0.0.1:0", "move", "g1", "3", "0", "u", "1")
	if err == nil || !strings.Contains(err.Error(), "seat token") {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestMoveCommandUsesEnvToken(t *testing.T) {
	var gotAuth string
	var gotReq triariidto.MoveRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(triariidto.MoveResponse{
			Moved: 2, TurnEnded: true, To: triariidto.Coord{Row: 2, Col: 0},
			Game: triariidto.Snapshot{ID: "g1", White: "ana", Black: "bo"},
		})
	}))
	defer srv.Close()

	t.Setenv("TRIARII_TOKEN", "tok")
	out, err := execute(t, srv.URL, "move", "g1", "3", "0", "u", "2")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if gotAuth != "Bearer tok" || gotReq.Count != 2 || gotReq.Dir != "u" || gotReq.From.Row != 3 {
		t.Fatalf("request not forwarded: auth=%q body=%+v", gotAuth, gotReq)
	}
	if !strings.Contains(out, "moved 2 to 2,0, turn over") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
