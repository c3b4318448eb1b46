// Package codegen assembles generated JavaScript from skeletons with named
// slots.
package codegen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/rendis/flowcode/pkg/schema"
)

// MarkerNamespace suffixes every slot marker. A marker written with any other
// UUID is plain text.
var MarkerNamespace = uuid.MustParse("ab8beaaa-c33b-4d88-a6ed-0a531cbdf847")

// Slot names used by the built-in skeletons.
const (
	SlotDSL           = "dsl"
	SlotNodeFns       = "node-fns"
	SlotTrigger       = "trigger"
	SlotMockNode      = "mock-node"
	SlotMockInput     = "mock-input"
	SlotImportPlugins = "import-plugins"
	SlotUsePlugins    = "use-plugins"
)

var markerRe = regexp.MustCompile(`/\*@slot:([a-z][a-z0-9-]*):([0-9a-fA-F-]{36})\*/`)

// Marker returns the template marker for a slot.
func Marker(name string) string {
	return fmt.Sprintf("/*@slot:%s:%s*/", name, MarkerNamespace)
}

// section is either literal text or a named slot.
type section struct {
	slot string
	text string
}

// Skeleton is an ordered list of text and slot sections. Skeletons are
// immutable: Fill returns a new one.
type Skeleton struct {
	name     string
	sections []section
}

// NewSkeleton starts an empty skeleton for the builder methods.
func NewSkeleton(name string) *Skeleton {
	return &Skeleton{name: name}
}

// Text appends a literal section.
func (s *Skeleton) Text(text string) *Skeleton {
	if text != "" {
		s.sections = append(s.sections, section{text: text})
	}
	return s
}

// Slot appends a named slot.
func (s *Skeleton) Slot(name string) *Skeleton {
	s.sections = append(s.sections, section{slot: name})
	return s
}

// Parse splits template text at slot markers.
func Parse(name, text string) *Skeleton {
	sk := NewSkeleton(name)
	ns := MarkerNamespace.String()
	last := 0
	for _, m := range markerRe.FindAllStringSubmatchIndex(text, -1) {
		if !strings.EqualFold(text[m[4]:m[5]], ns) {
			continue
		}
		sk.Text(text[last:m[0]])
		sk.Slot(text[m[2]:m[3]])
		last = m[1]
	}
	sk.Text(text[last:])
	return sk
}

// Name returns the skeleton name.
func (s *Skeleton) Name() string {
	return s.name
}

// Slots lists the unfilled slots in order of appearance.
func (s *Skeleton) Slots() []string {
	var out []string
	for _, sec := range s.sections {
		if sec.slot != "" {
			out = append(out, sec.slot)
		}
	}
	return out
}

// Has reports whether the skeleton still has the named slot.
func (s *Skeleton) Has(slot string) bool {
	for _, sec := range s.sections {
		if sec.slot == slot {
			return true
		}
	}
	return false
}

// Require fails with TEMPLATE_SLOT_MISSING naming every absent slot.
func (s *Skeleton) Require(slots ...string) error {
	var missing []string
	for _, name := range slots {
		if !s.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return schema.NewErrorf(schema.ErrCodeTemplateSlotMissing,
		"skeleton %q is missing slot(s) %s", s.name, strings.Join(missing, ", ")).
		WithDetails(map[string]any{"skeleton": s.name, "missing": missing})
}

// Fill substitutes values for slots in one pass. Substituted content becomes
// text and is never scanned for markers again.
func (s *Skeleton) Fill(values map[string]string) *Skeleton {
	out := &Skeleton{name: s.name, sections: make([]section, 0, len(s.sections))}
	for _, sec := range s.sections {
		if v, ok := values[sec.slot]; ok && sec.slot != "" {
			out.sections = append(out.sections, section{text: v})
			continue
		}
		out.sections = append(out.sections, sec)
	}
	return out
}

// Render concatenates the sections. Unfilled slots render empty.
func (s *Skeleton) Render() string {
	var b strings.Builder
	for _, sec := range s.sections {
		b.WriteString(sec.text)
	}
	return b.String()
}

// Source renders the skeleton back to template text, markers included.
func (s *Skeleton) Source() string {
	var b strings.Builder
	for _, sec := range s.sections {
		if sec.slot != "" {
			b.WriteString(Marker(sec.slot))
			continue
		}
		b.WriteString(sec.text)
	}
	return b.String()
}
