package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/park285/triarii/internal/client"
	"github.com/park285/triarii/pkg/triariidto"
)

const defaultServer = "http://localhost:8080"

// cli carries the settings shared by every subcommand. Flags win over
// TRIARII_SERVER and TRIARII_TOKEN.
type cli struct {
	v *viper.Viper
}

func (c *cli) client() *client.Client {
	return client.New(c.v.GetString("server"), client.WithTimeout(10*time.Second))
}

func (c *cli) token() (string, error) {
	t := strings.TrimSpace(c.v.GetString("token"))
	if t == "" {
		return "", errors.New("a seat token is required: pass --token or set TRIARII_TOKEN")
	}
	return t, nil
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	c := &cli{v: v}
	root := &cobra.Command{
		Use:          "triarii",
		Short:        "Play Triarii against a triarii-server",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("server", defaultServer, "server base URL")
	root.PersistentFlags().String("token", "", "seat token")
	_ = v.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag("token", root.PersistentFlags().Lookup("token"))
	v.SetEnvPrefix("TRIARII")
	v.AutomaticEnv()

	root.AddCommand(
		c.newCmd(), c.joinCmd(), c.showCmd(), c.historyCmd(),
		c.selectCmd(), c.moveCmd(), c.endCmd(), c.resignCmd(),
		c.watchCmd(), c.boardCmd(), c.resultsCmd(),
	)
	return root
}

func (c *cli) newCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new [name] [white|black|random]",
		Short: "Create a game and print its seat token",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seat, err := c.client().Create(cmd.Context(), arg(args, 0), arg(args, 1))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "game %s\nyou play %s, token %s\n", seat.Game.ID, seat.Color, seat.Token)
			printBoard(out, seat.Game)
			return nil
		},
	}
}

func (c *cli) joinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <id> [name]",
		Short: "Take the free seat of a game",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seat, err := c.client().Join(cmd.Context(), args[0], arg(args, 1))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "you play %s, token %s\n", seat.Color, seat.Token)
			printBoard(out, seat.Game)
			return nil
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print the board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := c.client().Snapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printBoard(cmd.OutOrStdout(), *snap)
			return nil
		},
	}
}

func (c *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Print the state log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := c.client().History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, e := range h.Entries {
				sel := ""
				if e.Selected != "" {
					sel = "  [" + e.Selected + "]"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%3d  %s  %s%s\n", e.Seq, e.At.Format(time.TimeOnly), e.Code, sel)
			}
			return nil
		},
	}
}

func (c *cli) selectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <id> <row> <col>",
		Short: "Choose the stack to move",
		Args:  cobra.MatchAll(cobra.ExactArgs(3), numericArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := c.token()
			if err != nil {
				return err
			}
			row, col := atoi(args[1]), atoi(args[2])
			snap, err := c.client().Select(cmd.Context(), args[0], token, row, col)
			if err != nil {
				return err
			}
			printBoard(cmd.OutOrStdout(), *snap)
			return nil
		},
	}
}

func (c *cli) moveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <row> <col> <u|d|l|r> <n>",
		Short: "Move n pieces one square",
		Args:  cobra.MatchAll(cobra.ExactArgs(5), numericArgs(1, 2, 4)),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := c.token()
			if err != nil {
				return err
			}
			req := triariidto.MoveRequest{
				From:  triariidto.Coord{Row: atoi(args[1]), Col: atoi(args[2])},
				Dir:   args[3],
				Count: atoi(args[4]),
			}
			res, err := c.client().Move(cmd.Context(), args[0], token, req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "moved %d to %d,%d", res.Moved, res.To.Row, res.To.Col)
			if res.Endzone {
				fmt.Fprint(out, " (endzone)")
			}
			if res.TurnEnded {
				fmt.Fprint(out, ", turn over")
			}
			fmt.Fprintln(out)
			printBoard(out, res.Game)
			if res.Message != "" {
				fmt.Fprintln(out, res.Message)
			}
			return nil
		},
	}
}

func (c *cli) endCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end <id>",
		Short: "End your turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := c.token()
			if err != nil {
				return err
			}
			snap, err := c.client().EndTurn(cmd.Context(), args[0], token)
			if err != nil {
				return err
			}
			printBoard(cmd.OutOrStdout(), *snap)
			return nil
		},
	}
}

func (c *cli) resignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resign <id>",
		Short: "Resign the game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := c.token()
			if err != nil {
				return err
			}
			snap, err := c.client().Resign(cmd.Context(), args[0], token)
			if err != nil {
				return err
			}
			printBoard(cmd.OutOrStdout(), *snap)
			return nil
		},
	}
}

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <id>",
		Short: "Follow a game live until it ends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := c.client().Watch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for snap := range ch {
				printBoard(cmd.OutOrStdout(), snap)
			}
			return nil
		},
	}
}

func (c *cli) boardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board <id> <file.png>",
		Short: "Save the rendered board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			png, err := c.client().Board(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], png, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", args[1], len(png))
			return nil
		},
	}
}

func (c *cli) resultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results [limit]",
		Short: "List finished games",
		Args:  cobra.MatchAll(cobra.MaximumNArgs(1), numericArgs(0)),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := 0
			if len(args) == 1 {
				limit = atoi(args[0])
			}
			list, err := c.client().Results(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, r := range list.Results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-12s %-12s %s\n", r.EndedAt.Format(time.DateTime), r.White, r.Black, r.Message)
			}
			return nil
		},
	}
}

// numericArgs checks that the positional args at idx, when present, are
// integers.
func numericArgs(idx ...int) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		for _, i := range idx {
			if i >= len(args) {
				continue
			}
			if _, err := strconv.Atoi(args[i]); err != nil {
				return fmt.Errorf("argument %d (%q) must be a number", i+1, args[i])
			}
		}
		return nil
	}
}

// atoi is only called on args already checked by numericArgs.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
