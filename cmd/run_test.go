// -- cmd/run_test.go --
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/prospector-cli/pkg/agent"
	"github.com/xkilldash9x/prospector-cli/pkg/extract"
)

func TestNormalizeStartURLs(t *testing.T) {
	got := normalizeStartURLs([]string{
		"acme.example",
		" www.acme.example/contact ",
		"http://plain.example",
		"https://secure.example",
	})
	assert.Equal(t, []string{
		"https://acme.example",
		"https://www.acme.example/contact",
		"http://plain.example",
		"https://secure.example",
	}, got)
}

func TestWriteResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")

	results := []agent.Result{{
		RunID:   "abc123",
		Status:  agent.StatusSucceeded,
		Success: true,
		Summary: "found two contacts",
		Steps:   4,
		Contacts: []extract.Contact{
			{Value: "info@acme.example", Kind: extract.KindEmail, Confidence: 0.9, Source: extract.SourceBoth},
		},
		FinalURL: "https://acme.example/contact",
	}}

	require.NoError(t, writeResults(path, results))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []agent.Result
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "abc123", decoded[0].RunID)
	assert.Equal(t, agent.StatusSucceeded, decoded[0].Status)
	require.Len(t, decoded[0].Contacts, 1)
	assert.Equal(t, "info@acme.example", decoded[0].Contacts[0].Value)
}

func TestRunCmdRequiresTask(t *testing.T) {
	cmd := newRunCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
}
