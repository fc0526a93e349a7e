// File: cmd/arithd/eval.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-arith/client"
)

// errReply marks an "Error: ..." answer; the reply itself was already printed.
var errReply = errors.New("server replied with an error")

func newEvalCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
		noColor bool
		value   bool
	)
	cmd := &cobra.Command{
		Use:   "eval EXPR...",
		Short: "Send one expression to a running server and print the reply",
		Example: `  arithd eval 3 + 4
  arithd eval --addr [::1]:3890 "1.5e3 / 4"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			cfg := client.DefaultConfig(addr)
			cfg.DialTimeout = timeout
			c, err := client.Dial(ctx, cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			expr := strings.Join(args, " ")
			if value {
				v, err := c.Compute(ctx, expr)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(v, 'f', -1, 64))
				return err
			}
			reply, err := c.Eval(ctx, expr)
			if err != nil {
				return err
			}
			return printReply(cmd.OutOrStdout(), reply, useColor(cmd.OutOrStdout(), noColor))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:3890", "server address")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "dial and reply timeout")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	cmd.Flags().BoolVar(&value, "value", false, "print only the numeric result; error replies fail the command")
	return cmd
}

func useColor(w io.Writer, disabled bool) bool {
	if disabled {
		return false
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func printReply(w io.Writer, reply string, colored bool) error {
	_, perr := client.ParseReply(reply)
	c := color.New(color.FgGreen, color.Bold)
	if perr != nil {
		c = color.New(color.FgRed, color.Bold)
	}
	if colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	if _, err := c.Fprintln(w, reply); err != nil {
		return err
	}
	if perr != nil {
		return fmt.Errorf("%w: %v", errReply, perr)
	}
	return nil
}
