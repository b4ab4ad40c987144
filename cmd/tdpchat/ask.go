package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shutirtha-roy/tdp-chatbot-project/internal/services"
)

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and print the answer",
		Example: `  tdpchat ask "Where is Swinburne located?"`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close(context.Background())) }()

			result, err := a.bot.Ask(ctx, "", strings.Join(args, " "))
			if err != nil {
				return err
			}
			printAnswer(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func printAnswer(w io.Writer, result *services.ChatResult) {
	fmt.Fprintln(w, result.Text)
	if result.Degraded {
		fmt.Fprintln(w, "\n(answered without knowledge base context)")
	}
	if len(result.Related) > 0 {
		fmt.Fprintln(w, "\nRelated questions:")
		for _, q := range result.Related {
			fmt.Fprintf(w, "  - %s\n", q)
		}
	}
}
