package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowcode/pkg/schema"
)

func TestMarker(t *testing.T) {
	assert.Equal(t, "/*@slot:dsl:"+MarkerNamespace.String()+"*/", Marker(SlotDSL))
}

func TestParse_RoundTrip(t *testing.T) {
	src := "a " + Marker("x") + " b " + Marker("y") + " c"
	sk := Parse("t", src)
	assert.Equal(t, []string{"x", "y"}, sk.Slots())
	assert.Equal(t, src, sk.Source())
	assert.Equal(t, "a  b  c", sk.Render())
}

func TestParse_ForeignMarkerIsText(t *testing.T) {
	foreign := "/*@slot:x:00000000-0000-0000-0000-000000000000*/"
	sk := Parse("t", "// define dsl here\n"+foreign)
	assert.Empty(t, sk.Slots())
	assert.Equal(t, "// define dsl here\n"+foreign, sk.Render())
}

func TestBuilder(t *testing.T) {
	sk := NewSkeleton("built").Text("const a = ").Slot("v").Text(";")
	assert.Equal(t, "built", sk.Name())
	assert.True(t, sk.Has("v"))
	assert.False(t, sk.Has("w"))
	assert.Equal(t, "const a = 1;", sk.Fill(map[string]string{"v": "1"}).Render())
}

func TestFill_SinglePass(t *testing.T) {
	sk := NewSkeleton("t").Slot("a").Text("|").Slot("b")

	// A value that happens to contain a marker must come out verbatim.
	filled := sk.Fill(map[string]string{"a": Marker("b")})
	assert.Equal(t, []string{"b"}, filled.Slots())
	assert.Equal(t, Marker("b")+"|", filled.Render())

	final := filled.Fill(map[string]string{"b": "B"})
	assert.Equal(t, Marker("b")+"|B", final.Render())

	assert.Equal(t, []string{"a", "b"}, sk.Slots(), "original is unchanged")
}

func TestFill_EachSlotOccurrence(t *testing.T) {
	sk := NewSkeleton("t").Slot("a").Text(",").Slot("a")
	assert.Equal(t, "x,x", sk.Fill(map[string]string{"a": "x"}).Render())
}

func TestRequire(t *testing.T) {
	sk := NewSkeleton("t").Slot(SlotDSL)
	require.NoError(t, sk.Require(SlotDSL))

	err := sk.Require(SlotDSL, SlotNodeFns, SlotTrigger)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeTemplateSlotMissing))
	assert.Contains(t, err.Error(), "node-fns, trigger")
}

func TestEmbeddedSkeletons(t *testing.T) {
	assert.Equal(t, []string{"online.js", "project/context.js", "project/index.js", "project/logic.js"}, Names())

	online := MustLoad(OnlineSkeleton)
	assert.Equal(t, []string{SlotDSL, SlotNodeFns, SlotTrigger, SlotMockNode, SlotMockInput}, online.Slots())

	index := MustLoad(ProjectIndexSkeleton)
	assert.Equal(t, []string{SlotImportPlugins, SlotUsePlugins}, index.Slots())

	logic := MustLoad(ProjectLogicSkeleton)
	assert.Empty(t, logic.Slots())
	assert.True(t, strings.Contains(logic.Render(), "from 'eventemitter3'"))

	_, err := Load("missing.js")
	require.Error(t, err)
}
