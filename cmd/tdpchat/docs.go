package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/shutirtha-roy/tdp-chatbot-project/internal/vectorstore"
)

const (
	ingestChunkSize    = 1000
	ingestChunkOverlap = 100
)

func newAddDocsCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:     "add-docs <text>...",
		Short:   "Add each argument to the knowledge index as one document",
		Example: `  tdpchat add-docs "The Hawthorn campus library opens at 8am."`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close(context.Background())) }()

			var meta map[string]string
			if source != "" {
				meta = map[string]string{"source": source}
			}
			ids, err := a.bot.AddDocuments(ctx, args, meta)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source metadata for the documents")
	return cmd
}

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Split text files into chunks and add them to the knowledge index",
		Long: `Split each file into overlapping chunks of about 1000 characters
and add them to the knowledge index. Each chunk records its file name as
"source" metadata.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close(context.Background())) }()

			for _, path := range args {
				chunks, err := splitFile(path)
				if err != nil {
					return err
				}
				if len(chunks) == 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: empty, skipped\n", path)
					continue
				}
				ids, err := a.bot.AddDocuments(ctx, chunks, map[string]string{"source": filepath.Base(path)})
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks\n", path, len(ids))
			}
			return nil
		},
	}
}

// splitFile reads path and splits it into ingest-sized chunks.
func splitFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(ingestChunkSize),
		textsplitter.WithChunkOverlap(ingestChunkOverlap),
	)
	chunks, err := splitter.SplitText(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", path, err)
	}
	return chunks, nil
}

func newSearchCmd() *cobra.Command {
	opts := vectorstore.DefaultSearchOptions()
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the passages MMR selects for a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close(context.Background())) }()

			docs, err := a.reg.Knowledge().Search(ctx, args[0], opts)
			if err != nil {
				return err
			}
			for i, d := range docs {
				if src := d.Metadata["source"]; src != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%d. (%s) %s\n", i+1, src, d.Content)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, d.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&opts.K, "k", "k", opts.K, "number of passages")
	cmd.Flags().Float32Var(&opts.Lambda, "lambda", opts.Lambda, "relevance weight in [0,1]; 1 ranks by relevance only")
	cmd.Flags().Float32Var(&opts.Threshold, "threshold", opts.Threshold, "minimum similarity")
	cmd.Flags().IntVar(&opts.FetchK, "fetch-k", opts.FetchK, "candidate pool size (0 = whole index)")
	return cmd
}
