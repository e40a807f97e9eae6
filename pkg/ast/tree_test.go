package ast

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/offreg/pkg/types"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewTree(t *testing.T) {
	tree := NewTree(t0)
	require.NotNil(t, tree.Root)
	require.Empty(t, tree.Root.Name)
	require.Empty(t, tree.Root.Path())
	require.Equal(t, t0, tree.Root.LastWrite)
}

func TestChildrenStaySorted(t *testing.T) {
	root := NewTree(t0).Root
	for _, name := range []string{"zeta", "Alpha", "beta", "_under", "Gamma"} {
		root.AddChild(name, "", t0)
	}
	var got []string
	for _, c := range root.Children {
		got = append(got, c.Name)
	}
	require.Equal(t, []string{"Alpha", "beta", "Gamma", "zeta", "_under"}, got)
}

func TestChildLookupIsCaseInsensitive(t *testing.T) {
	root := NewTree(t0).Root
	sw := root.AddChild("Software", "", t0)
	require.Same(t, sw, root.Child("SOFTWARE"))
	require.Same(t, sw, root.Child("software"))
	require.Nil(t, root.Child("Soft"))
}

func TestFindAcceptsBothSeparators(t *testing.T) {
	tree := NewTree(t0)
	c := tree.Root.AddChild("A", "", t0).AddChild("B", "", t0).AddChild("C", "", t0)
	require.Same(t, c, tree.FindNode(`A\B\C`))
	require.Same(t, c, tree.FindNode("a/b//c/"))
	require.Same(t, tree.Root, tree.FindNode(""))
	require.Nil(t, tree.FindNode(`A\X`))
	require.Equal(t, `A\B\C`, c.Path())
	require.Equal(t, 3, c.Depth())
}

func TestSplitPath(t *testing.T) {
	require.Equal(t, []string{"A", "B", "C"}, SplitPath(`\A\\B/C/`))
	require.Empty(t, SplitPath(`\/`))
}

func TestAddChildInheritsSecurityAndTouchesParent(t *testing.T) {
	root := NewTree(t0).Root
	root.Security = []byte{1, 2, 3}
	t1 := t0.Add(time.Hour)
	child := root.AddChild("K", "cls", t1)
	require.Equal(t, root.Security, child.Security)
	require.Equal(t, "cls", child.Class)
	require.Equal(t, t1, root.LastWrite)

	child.Security[0] = 9
	require.Equal(t, byte(1), root.Security[0], "descriptor is copied, not shared")
}

func TestRemoveChildMarksSubtreeDeleted(t *testing.T) {
	root := NewTree(t0).Root
	a := root.AddChild("A", "", t0)
	b := a.AddChild("B", "", t0)

	require.True(t, root.RemoveChild(a, t0))
	require.True(t, a.Deleted)
	require.True(t, b.Deleted)
	require.Nil(t, a.Parent)
	require.Empty(t, root.Children)
	require.False(t, root.RemoveChild(a, t0))
}

func TestValues(t *testing.T) {
	n := NewTree(t0).Root
	n.SetValue("b", types.REG_SZ, []byte{1}, t0)
	n.SetValue("a", types.REG_DWORD, []byte{1, 0, 0, 0}, t0)
	n.SetValue("B", types.REG_BINARY, []byte{2}, t0)

	require.Len(t, n.Values, 2)
	require.Equal(t, "b", n.Values[0].Name, "replacement keeps position and spelling")
	require.Equal(t, types.REG_BINARY, n.Values[0].Type)
	require.Equal(t, "a", n.Values[1].Name)

	require.NotNil(t, n.Value("A"))
	require.True(t, n.RemoveValue("A", t0))
	require.False(t, n.RemoveValue("A", t0))
	require.Len(t, n.Values, 1)
}

func TestStats(t *testing.T) {
	n := NewTree(t0).Root
	n.AddChild("short", "", t0)
	n.AddChild("much-longer", "classy", t0)
	n.SetValue("", types.REG_SZ, make([]byte, 40), t0)
	n.SetValue("name😀", types.REG_BINARY, make([]byte, 3), t0)

	s := n.Stats()
	require.Equal(t, 11, s.MaxSubkeyNameLen)
	require.Equal(t, 6, s.MaxClassLen)
	require.Equal(t, 6, s.MaxValueNameLen)
	require.Equal(t, 40, s.MaxValueDataLen)
}

func TestLimits(t *testing.T) {
	l := DefaultLimits()
	require.NoError(t, l.ValidateKey("ok", "", 1))

	err := l.ValidateKey(strings.Repeat("x", WindowsMaxKeyNameLen+1), "", 1)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "MaxKeyNameLen", ve.Limit)

	require.Error(t, l.ValidateKey("", "", 1))
	require.Error(t, l.ValidateKey("k", "", WindowsMaxTreeDepth+1))
	require.NoError(t, l.ValidateValue("", 1024))
	require.Error(t, l.ValidateValue("", WindowsMaxValueSize+1))
}

func TestEstimateSize(t *testing.T) {
	tree := NewTree(t0)
	empty := tree.Root.EstimateSize()
	require.Positive(t, empty)

	tree.Root.AddChild("A", "", t0).SetValue("v", types.REG_BINARY, make([]byte, 100), t0)
	require.Greater(t, tree.Root.EstimateSize(), empty+100)
}

func TestAttach(t *testing.T) {
	root := NewTree(t0).Root
	later := t0.Add(time.Hour)
	child := &Node{Name: "Loaded", LastWrite: later}

	require.True(t, root.Attach(child))
	require.Same(t, root, child.Parent)
	require.Equal(t, t0, root.LastWrite, "attach leaves timestamps alone")
	require.Equal(t, later, child.LastWrite)

	require.False(t, root.Attach(&Node{Name: "LOADED"}), "duplicate name")
	require.Len(t, root.Children, 1)
}
