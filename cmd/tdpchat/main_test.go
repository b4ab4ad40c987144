package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shutirtha-roy/tdp-chatbot-project/internal/conversation"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/services"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"serve"}, {"ask"}, {"add-docs"}, {"ingest"}, {"search"},
		{"topics", "add"}, {"topics", "top"}, {"topics", "similar"}, {"version"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, strings.Join(path, " "))
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestSearchCmd_Flags(t *testing.T) {
	cmd := newSearchCmd()

	k := cmd.Flags().Lookup("k")
	require.NotNil(t, k)
	assert.Equal(t, "4", k.DefValue)
	assert.Equal(t, "k", k.Shorthand)

	lambda := cmd.Flags().Lookup("lambda")
	require.NotNil(t, lambda)
	assert.Equal(t, "0.5", lambda.DefValue)

	require.NotNil(t, cmd.Flags().Lookup("threshold"))
	require.NotNil(t, cmd.Flags().Lookup("fetch-k"))
}

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "tdpchat dev\n", out.String())
}

func TestAskCmd_RequiresQuestion(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"ask"})

	assert.Error(t, root.Execute())
}

func TestSplitFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("short file is one chunk", func(t *testing.T) {
		path := filepath.Join(dir, "short.txt")
		require.NoError(t, os.WriteFile(path, []byte("Swinburne has a campus in Hawthorn."), 0o600))

		chunks, err := splitFile(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"Swinburne has a campus in Hawthorn."}, chunks)
	})

	t.Run("long file is split within chunk size", func(t *testing.T) {
		var b strings.Builder
		for i := 0; i < 60; i++ {
			b.WriteString("Students can enrol in units across several campuses each semester.\n\n")
		}
		path := filepath.Join(dir, "long.txt")
		require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))

		chunks, err := splitFile(path)
		require.NoError(t, err)
		assert.Greater(t, len(chunks), 1)
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c), ingestChunkSize)
			assert.NotEmpty(t, strings.TrimSpace(c))
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := splitFile(filepath.Join(dir, "absent.txt"))
		assert.Error(t, err)
	})
}

func TestPrintAnswer(t *testing.T) {
	var out bytes.Buffer
	printAnswer(&out, &services.ChatResult{
		SessionID: "s1",
		Answer: &conversation.Answer{
			Text:    "It is in Melbourne.",
			Related: []string{"Which campuses are there?", "How do I get there?"},
		},
	})

	got := out.String()
	assert.True(t, strings.HasPrefix(got, "It is in Melbourne.\n"))
	assert.Contains(t, got, "Related questions:")
	assert.Contains(t, got, "  - How do I get there?\n")
	assert.NotContains(t, got, "without knowledge base context")
}
