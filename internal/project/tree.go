// Package project turns graph nodes into the source tree of a project-mode
// compile.
package project

import (
	"path"
	"sort"
	"strings"
)

// Tree maps a path segment to a file or directory. A key without an
// extension is a directory.
type Tree map[string]Entry

// Entry is a file (Content) or a directory (Children).
type Entry struct {
	Content  []byte
	Children Tree
}

// File is one flattened tree leaf.
type File struct {
	Path    string
	Content []byte
}

// IsDir reports whether key names a directory.
func IsDir(key string) bool {
	return path.Ext(key) == ""
}

// Put stores content at a slash-separated path, creating directories.
func (t Tree) Put(p string, content []byte) {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	cur := t
	for _, dir := range parts[:len(parts)-1] {
		e, ok := cur[dir]
		if !ok || e.Children == nil {
			e = Entry{Children: Tree{}}
			cur[dir] = e
		}
		cur = e.Children
	}
	cur[parts[len(parts)-1]] = Entry{Content: content}
}

// Mount places sub under dir.
func (t Tree) Mount(dir string, sub Tree) {
	t[dir] = Entry{Children: sub}
}

// Get returns the file content at p.
func (t Tree) Get(p string) ([]byte, bool) {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	cur := t
	for i, part := range parts {
		e, ok := cur[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			if IsDir(part) {
				return nil, false
			}
			return e.Content, true
		}
		cur = e.Children
	}
	return nil, false
}

// Flatten lists every file with its full path, sorted by path.
func (t Tree) Flatten() []File {
	var files []File
	t.walk("", &files)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

func (t Tree) walk(prefix string, files *[]File) {
	for name, e := range t {
		p := path.Join(prefix, name)
		if IsDir(name) {
			e.Children.walk(p, files)
			continue
		}
		*files = append(*files, File{Path: p, Content: e.Content})
	}
}
