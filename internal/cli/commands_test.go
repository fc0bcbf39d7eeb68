package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Drives the real command tree against a file-backed store: schema
// listing, assertion, query in both formats, and pull.
func TestCommands_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "facts.db")

	schemaPath := writeDoc(t, "schema.yaml", `
attributes:
  - ident: person/name
    type: string
    unique: identity
    indexed: true
  - ident: person/age
    type: long
  - ident: person/friend
    type: ref
    cardinality: many
`)
	factsPath := writeDoc(t, "facts.yaml", `
facts:
  - e: 1
    attr: person/name
    value: Alice
  - e: 1
    attr: person/age
    value: 30
  - e: 1
    attr: person/friend
    value: 2
  - e: 2
    attr: person/name
    value: Bob
  - e: 2
    attr: person/age
    value: 10
`)
	queryPath := writeDoc(t, "query.yaml", `
find:
  rel: ["?name", "?age"]
where:
  - pattern: ["?p", person/name, "?name"]
  - pattern: ["?p", person/age, "?age"]
  - pred: [">", "?age", 18]
`)
	pullPath := writeDoc(t, "pattern.yaml", `
pull:
  - attr: person/name
  - attr: person/friend
    nested:
      - attr: person/name
`)

	run := func(args ...string) (string, error) {
		cmd := NewRootCommand()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetErr(&buf)
		cmd.SetArgs(append([]string{"--db", dbPath, "--schema", schemaPath}, args...))
		err := cmd.Execute()
		return buf.String(), err
	}

	out, err := run("schema")
	require.NoError(t, err)
	assert.Contains(t, out, "person/name")
	assert.Contains(t, out, "ref")

	out, err = run("assert", "-f", factsPath)
	require.NoError(t, err)
	assert.Contains(t, out, "asserted 5 facts")

	out, err = run("query", "-f", queryPath)
	require.NoError(t, err)
	assert.Contains(t, out, "name\tage")
	assert.Contains(t, out, "Alice\t30")
	assert.NotContains(t, out, "Bob", "under-18 rows are filtered")

	out, err = run("query", "-f", queryPath, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"shape": "rel"`)
	assert.Contains(t, out, `"Alice"`)

	out, err = run("pull", "-f", pullPath, "-e", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "person/name")
	assert.Contains(t, out, "Bob", "nested friend expands")
}
