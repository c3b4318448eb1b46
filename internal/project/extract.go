package project

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/rendis/flowcode/pkg/schema"
)

// EntryFile is the aggregating module of a node function tree.
const EntryFile = "index.js"

// entryModuleName is EntryFile without extension; no node may be named so.
var entryModuleName = strings.TrimSuffix(EntryFile, path.Ext(EntryFile))

// ExtractNodeFiles writes one <id>.js per node, headed by a comment naming
// the node's shape and label, plus an index.js that imports them all and
// exports a map from node id to function. Nodes are sorted by id so the
// output is reproducible. A node id that is not a usable file name, or that
// would shadow index.js, fails with VALIDATION_ERROR.
func ExtractNodeFiles(nodes []*schema.Cell) (Tree, error) {
	sorted := make([]*schema.Cell, 0, len(nodes))
	for _, n := range nodes {
		if n != nil && !n.IsEdge() {
			sorted = append(sorted, n)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	tree := Tree{}
	ids := make([]string, 0, len(sorted))
	for _, n := range sorted {
		if err := checkFileID(n.ID); err != nil {
			return nil, err
		}
		data := n.DataOrZero()
		tree[n.ID+".js"] = Entry{Content: []byte(fmt.Sprintf("// %s: %s\n\n%s", n.Shape, data.Label, data.Code))}
		ids = append(ids, n.ID)
	}
	tree[EntryFile] = Entry{Content: []byte(EntryModule(ids))}
	return tree, nil
}

func checkFileID(id string) error {
	switch {
	case id == "" || id == "." || id == "..":
		return schema.NewErrorf(schema.ErrCodeValidation, "node id %q cannot name a file", id).WithNode(id)
	case strings.ContainsAny(id, `/\`):
		return schema.NewErrorf(schema.ErrCodeValidation, "node id %q contains a path separator", id).WithNode(id)
	case strings.EqualFold(id, entryModuleName):
		return schema.NewErrorf(schema.ErrCodeValidation,
			"node id %q collides with the %s entry module", id, EntryFile).WithNode(id)
	}
	return nil
}

// EntryModule renders the index.js source for the given node ids.
func EntryModule(ids []string) string {
	imports := make([]string, 0, len(ids))
	fns := make([]string, 0, len(ids))
	for i, id := range ids {
		fn := fmt.Sprintf("fn_%d", i)
		imports = append(imports, fmt.Sprintf("import %s from %s;", fn, quote("./"+id)))
		fns = append(fns, fmt.Sprintf("%s: %s", quote(id), fn))
	}
	return strings.Join([]string{
		strings.Join(imports, "\n"),
		"const nodeFns = {\n  " + strings.Join(fns, ",\n  ") + "\n};",
		"export default nodeFns;",
	}, "\n")
}

var quoteReplacer = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
)

// quote renders s as a single-quoted JS string literal.
func quote(s string) string {
	return "'" + quoteReplacer.Replace(s) + "'"
}
