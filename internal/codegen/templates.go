package codegen

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
)

//go:embed templates
var templateFS embed.FS

// Built-in skeleton names.
const (
	OnlineSkeleton         = "online.js"
	ProjectIndexSkeleton   = "project/index.js"
	ProjectLogicSkeleton   = "project/logic.js"
	ProjectContextSkeleton = "project/context.js"
)

// Load parses an embedded skeleton.
func Load(name string) (*Skeleton, error) {
	data, err := templateFS.ReadFile(path.Join("templates", name))
	if err != nil {
		return nil, fmt.Errorf("load skeleton %s: %w", name, err)
	}
	return Parse(name, string(data)), nil
}

// MustLoad is Load for skeletons that ship with the binary.
func MustLoad(name string) *Skeleton {
	sk, err := Load(name)
	if err != nil {
		panic(err)
	}
	return sk
}

// Names lists the embedded skeletons.
func Names() []string {
	var names []string
	_ = fs.WalkDir(templateFS, "templates", func(p string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			names = append(names, p[len("templates/"):])
		}
		return nil
	})
	sort.Strings(names)
	return names
}
