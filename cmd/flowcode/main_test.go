package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	isolateConfig(t)
	out, err := run(t, "--project", t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestCompileOnlineCommand(t *testing.T) {
	isolateConfig(t)
	project := t.TempDir()
	graph := writeFile(t, project, "flow.json", signupJSON)

	out, err := run(t, "--project", project, "compile", "online", graph, "--mock-input", `{"payload":1}`)
	require.NoError(t, err)
	assert.Contains(t, out, `const trigger = "signup";`)
	assert.Contains(t, out, `const mockInput = {"payload":1};`)
	assert.Contains(t, out, "https://jspm.dev/axios")

	target := filepath.Join(project, "preview.js")
	_, err = run(t, "--project", project, "compile", "online", graph, "--select", "fetch,mail", "-o", target)
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `const mockNodeId = "fetch";`)
}

func TestCompileOnlineCommand_ProjectBaseURL(t *testing.T) {
	isolateConfig(t)
	project := t.TempDir()
	writeFile(t, project, "flowcode.hcl", `
project_name = "signup"
compile {
  module_base_url = "https://esm.sh"
}
`)
	graph := writeFile(t, project, "flow.json", signupJSON)

	out, err := run(t, "--project", project, "compile", "online", graph)
	require.NoError(t, err)
	assert.Contains(t, out, "https://esm.sh/axios")
}

func TestCompileProjectCommand(t *testing.T) {
	isolateConfig(t)
	project := t.TempDir()
	writeFile(t, project, "flowcode.hcl", `
project_name = "signup"
output_path  = "gen/logic"
plugins      = ["@flowcode/plugin-log"]
`)
	writeFile(t, project, "package.json", `{"name":"signup","dependencies":{"lodash":"^4.17.21"}}`)
	graph := writeFile(t, project, "flow.json", signupJSON)

	out, err := run(t, "--project", project, "compile", "project", graph)
	require.NoError(t, err)
	assert.Contains(t, out, "compiled 8 files")

	index, err := os.ReadFile(filepath.Join(project, "gen", "logic", "index.js"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "import plugin0 from '@flowcode/plugin-log';")
	assert.FileExists(t, filepath.Join(project, "gen", "logic", "nodeFns", "fetch.js"))

	manifest, err := os.ReadFile(filepath.Join(project, "package.json"))
	require.NoError(t, err)
	assert.Contains(t, string(manifest), `"lodash": "^4.17.21"`)
	assert.Contains(t, string(manifest), `"axios": "^1.6.0"`)
}

func TestCompileProjectCommand_DryRun(t *testing.T) {
	isolateConfig(t)
	project := t.TempDir()
	graph := writeFile(t, project, "flow.json", signupJSON)

	out, err := run(t, "--project", project, "compile", "project", graph, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "nodeFns/index.js\n")
	assert.NoFileExists(t, filepath.Join(project, "package.json"))
	assert.NoDirExists(t, filepath.Join(project, "src"))
}

func TestLintCommand(t *testing.T) {
	isolateConfig(t)
	project := t.TempDir()

	out, err := run(t, "--project", project, "lint", writeFile(t, project, "ok.json", signupJSON))
	require.NoError(t, err)
	assert.Contains(t, out, "OK:")

	dangling := strings.Replace(signupJSON, `"target":{"cell":"mail"}`, `"target":{"cell":"ghost"}`, 1)
	out, err = run(t, "--project", project, "lint", writeFile(t, project, "bad.json", dangling))
	require.Error(t, err)
	assert.Contains(t, out, "DANGLING_EDGE")
}

func TestDiagramCommand(t *testing.T) {
	isolateConfig(t)
	project := t.TempDir()
	graph := writeFile(t, project, "flow.json", signupJSON)

	out, err := run(t, "--project", project, "diagram", graph)
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "start --> fetch")

	out, err = run(t, "--project", project, "diagram", graph, "--format", "ascii")
	require.NoError(t, err)
	assert.Contains(t, out, "Fetch user")

	_, err = run(t, "--project", project, "diagram", graph, "--format", "png")
	assert.ErrorContains(t, err, "--out")

	_, err = run(t, "--project", project, "diagram", graph, "--format", "svg")
	assert.ErrorContains(t, err, "unknown format")
}

func TestCheckoutExampleIsClean(t *testing.T) {
	isolateConfig(t)
	example := filepath.Join("..", "..", "examples", "checkout")

	out, err := run(t, "--project", example, "lint", filepath.Join(example, "flow.json"))
	require.NoError(t, err)
	assert.Contains(t, out, "(0 warnings)", "every branch edge leaves a port a result can select")

	out, err = run(t, "--project", example, "compile", "project", filepath.Join(example, "flow.json"), "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "nodeFns/charge.js\n")
}
