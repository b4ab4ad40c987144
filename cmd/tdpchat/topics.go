package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newTopicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Record and list the topics students ask about",
	}
	cmd.AddCommand(newTopicsAddCmd(), newTopicsTopCmd(), newTopicsSimilarCmd())
	return cmd
}

func newTopicsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <topic>...",
		Short: "Spell-correct and count topics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close(context.Background())) }()

			corrected, err := a.bot.AddTopics(ctx, args)
			if err != nil {
				return err
			}
			for _, t := range corrected {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}

func newTopicsTopCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "List the most counted topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close(context.Background())) }()

			top, err := a.reg.Topics().Top(ctx, n)
			if err != nil {
				return err
			}
			for _, t := range top {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "n", "n", 0, "number of topics (default topics.default_n)")
	return cmd
}

func newTopicsSimilarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "similar [query]",
		Short: "Suggest topics: the top topics, or related questions for a query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close(context.Background())) }()

			var query string
			if len(args) == 1 {
				query = args[0]
			}
			found, err := a.bot.SimilarTopics(ctx, query)
			if err != nil {
				return err
			}
			for _, t := range found {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}
