package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/rendis/flowcode/internal/deps"
)

// BuiltinDependencies are required by the generated runtime itself.
var BuiltinDependencies = map[string]string{
	"eventemitter3": "^4.0.7",
}

// MergeManifest read-modify-writes the package.json at pkgPath: node
// dependencies are laid over the existing "dependencies" (last writer wins)
// followed by the runtime's builtin dependencies. Every other key keeps its
// value and position. A missing manifest is created.
func MergeManifest(pkgPath string, nodeDeps *deps.Map) error {
	manifest := orderedmap.New[string, json.RawMessage]()
	data, err := os.ReadFile(pkgPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return outputErr(err, "read %s", pkgPath)
	default:
		if err := json.Unmarshal(data, manifest); err != nil {
			return outputErr(err, "parse %s", pkgPath)
		}
	}

	merged := deps.NewMap()
	if raw, ok := manifest.Get("dependencies"); ok {
		if err := json.Unmarshal(raw, merged); err != nil {
			return outputErr(err, "parse dependencies of %s", pkgPath)
		}
	}
	if nodeDeps != nil {
		deps.Overlay(merged, nodeDeps)
	}
	for name, version := range BuiltinDependencies {
		merged.Set(name, version)
	}

	rawDeps, err := json.Marshal(merged)
	if err != nil {
		return outputErr(err, "encode dependencies")
	}
	manifest.Set("dependencies", rawDeps)

	compact, err := json.Marshal(manifest)
	if err != nil {
		return outputErr(err, "encode %s", pkgPath)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, compact, "", "  "); err != nil {
		return outputErr(err, "format %s", pkgPath)
	}
	pretty.WriteByte('\n')

	return writeFileAtomic(pkgPath, pretty.Bytes())
}

// writeFileAtomic writes data to a sibling temp file and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return outputErr(err, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".flowcode-*.tmp")
	if err != nil {
		return outputErr(err, "create temp file in %s", dir)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return outputErr(err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return outputErr(err, "write %s", path)
	}
	if err := os.Chmod(tmp.Name(), fileMode); err != nil {
		return outputErr(err, "chmod %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return outputErr(err, "replace %s", path)
	}
	return nil
}
