package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/speaking-coach/internal/dispatch"
	"github.com/danielpatrickdp/speaking-coach/internal/engine"
	"github.com/danielpatrickdp/speaking-coach/internal/lesson"
	"github.com/danielpatrickdp/speaking-coach/internal/logging"
	"github.com/danielpatrickdp/speaking-coach/internal/notify"
	"github.com/danielpatrickdp/speaking-coach/internal/session"
)

// runCmd plays one module in the terminal. Typed lines stand in for the
// speech transcript.
func runCmd(load loadFunc) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "run <module>",
		Short: "Play a module interactively in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if quiet {
				log.SetOutput(io.Discard)
			}
			ctx := cmd.Context()

			orc, closeOracle, err := buildOracle(cfg.Oracle)
			if err != nil {
				return fmt.Errorf("oracle: %w", err)
			}
			defer closeOracle()

			archive, err := openArchive(cfg.Reports)
			if err != nil {
				return fmt.Errorf("archive: %w", err)
			}
			opts := []session.Option{
				session.WithOracle(orc),
				session.WithOracleTimeout(cfg.Oracle.Timeout),
				session.WithReportSink(reportSinks(cfg.Reports, archive)),
				session.WithNotifier(notify.NewConsole(cmd.OutOrStdout())),
			}
			if archive != nil {
				defer archive.Close()
				opts = append(opts, session.WithCallObserver(func(id string) dispatch.Observer {
					return &logging.CallLogger{DB: archive.DB(), SessionID: id}
				}))
			}

			reg := session.NewRegistry(lesson.NewLoader(cfg.Modules.Dir, nil), opts...)
			s, err := reg.Start(ctx, args[0])
			if err != nil {
				return err
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "you> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "/quit",
			})
			if err != nil {
				return err
			}
			defer rl.Close()
			fmt.Fprintln(os.Stderr, "Type your answer. Commands: /skip, /state, /quit")

			return converse(ctx, rl, s)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide log output")
	return cmd
}

func converse(ctx context.Context, rl *readline.Instance, s *session.Session) error {
	for s.State() != engine.StateClosed {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		active := s.Snapshot().ActiveField
		rl.SetPrompt(active + "> ")

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)

		switch line {
		case "":
			continue
		case "/quit":
			return nil
		case "/state":
			snap := s.Snapshot()
			fmt.Printf("state=%s field=%s filled=%v\n", snap.State, snap.ActiveField, snap.FilledFields)
			continue
		case "/skip":
			_, err = s.Skip(ctx, active)
		default:
			_, err = s.Submit(ctx, active, line)
		}
		if err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
	return nil
}
