package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type exportedGraph struct {
	Nodes []struct {
		ID   int64  `json:"id" yaml:"id"`
		Name string `json:"name" yaml:"name"`
		Type string `json:"type" yaml:"type"`
	} `json:"nodes" yaml:"nodes"`
	Links []struct {
		Source int64  `json:"source" yaml:"source"`
		Target int64  `json:"target" yaml:"target"`
		Type   string `json:"type" yaml:"type"`
	} `json:"links" yaml:"links"`
}

func countKinds(g exportedGraph) (nodes, links map[string]int) {
	nodes, links = map[string]int{}, map[string]int{}
	for _, n := range g.Nodes {
		nodes[n.Type]++
	}
	for _, l := range g.Links {
		links[l.Type]++
	}
	return nodes, links
}

func TestMigrate(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kb.db")

	out, err := run(t, "--db", db, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "is up to date")

	// Migrations are idempotent
	_, err = run(t, "--db", db, "migrate")
	require.NoError(t, err)
}

func TestSeedRebuildExport(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kb.db")

	out, err := run(t, "--db", db, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded account demo@example.com (id 1)")

	out, err = run(t, "--db", db, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	out, err = run(t, "--db", db, "rebuild-graph")
	require.NoError(t, err)
	assert.Contains(t, out, "owner 1: 3 categories, 4 tags, 3 notes, 0 collections")
	assert.Contains(t, out, "Rebuilt 1 account(s)")

	out, err = run(t, "--db", db, "export-graph", "--owner", "1")
	require.NoError(t, err)
	var fromJSON exportedGraph
	require.NoError(t, json.Unmarshal([]byte(out), &fromJSON))

	nodes, links := countKinds(fromJSON)
	assert.Equal(t, map[string]int{"category": 3, "tag": 4, "note": 3}, nodes)
	assert.Equal(t, 1, links["reference"])
	assert.Equal(t, 4, links["related"]) // two symmetric pairs
	assert.Equal(t, 3, links["parent"])
	assert.Equal(t, 5, links["tagged"])

	out, err = run(t, "--db", db, "export-graph", "--owner", "1", "--format", "yaml")
	require.NoError(t, err)
	var fromYAML exportedGraph
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))
	assert.Equal(t, len(fromJSON.Nodes), len(fromYAML.Nodes))
	assert.Equal(t, len(fromJSON.Links), len(fromYAML.Links))
}

func TestRebuildSingleOwner(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kb.db")
	_, err := run(t, "--db", db, "seed")
	require.NoError(t, err)

	out, err := run(t, "--db", db, "rebuild-graph", "--owner", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "owner 1:")

	out, err = run(t, "--db", db, "rebuild-graph", "--owner", "99")
	require.NoError(t, err)
	assert.Contains(t, out, "owner 99: 0 categories, 0 tags, 0 notes, 0 collections")
}

func TestExportGraphValidatesFlags(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kb.db")

	_, err := run(t, "--db", db, "export-graph")
	assert.ErrorContains(t, err, "owner")

	_, err = run(t, "--db", db, "export-graph", "--owner", "1", "--format", "xml")
	assert.ErrorContains(t, err, "format")
}
