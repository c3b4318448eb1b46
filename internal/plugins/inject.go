// Package plugins wires runtime plugins into generated project entry files.
package plugins

import (
	"fmt"
	"strings"

	"github.com/rendis/flowcode/internal/codegen"
)

// Binding returns the import binding for the plugin at position i.
func Binding(i int) string {
	return fmt.Sprintf("plugin%d", i)
}

// Imports renders one default import per specifier, in order.
func Imports(specifiers []string) string {
	lines := make([]string, 0, len(specifiers))
	for i, spec := range specifiers {
		lines = append(lines, fmt.Sprintf("import %s from '%s';", Binding(i), spec))
	}
	return strings.Join(lines, "\n")
}

// Uses renders one logic.use call per specifier, in order.
func Uses(specifiers []string) string {
	lines := make([]string, 0, len(specifiers))
	for i := range specifiers {
		lines = append(lines, fmt.Sprintf("logic.use(%s);", Binding(i)))
	}
	return strings.Join(lines, "\n")
}

// Inject fills whichever of the import-plugins and use-plugins slots sk has.
// Specifiers are interpolated as given; registration order is list order.
func Inject(sk *codegen.Skeleton, specifiers []string) *codegen.Skeleton {
	values := make(map[string]string, 2)
	if sk.Has(codegen.SlotImportPlugins) {
		values[codegen.SlotImportPlugins] = Imports(specifiers)
	}
	if sk.Has(codegen.SlotUsePlugins) {
		values[codegen.SlotUsePlugins] = Uses(specifiers)
	}
	return sk.Fill(values)
}
