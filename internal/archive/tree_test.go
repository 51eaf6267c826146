package archive

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sxbin-backend/internal/models"
)

func entriesFor(paths ...string) []models.ArchiveEntry {
	out := make([]models.ArchiveEntry, 0, len(paths))
	for _, p := range paths {
		out = append(out, models.ArchiveEntry{Path: p, Size: int64(len(p))})
	}
	return out
}

func collectFiles(nodes []*models.TreeNode, out *[]string) {
	for _, n := range nodes {
		if n.IsDir() {
			collectFiles(n.Children, out)
			continue
		}
		*out = append(*out, n.Path)
	}
}

func TestBuildTree_DirectoriesFirst(t *testing.T) {
	tree := BuildTree(entriesFor("b.txt", "a/", "a/c.txt"))

	require.Len(t, tree, 2)
	assert.Equal(t, "a", tree[0].Name)
	assert.True(t, tree[0].IsDir())
	assert.Equal(t, "b.txt", tree[1].Name)
	assert.False(t, tree[1].IsDir())

	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "a/c.txt", tree[0].Children[0].Path)
}

func TestBuildTree_SynthesizesAncestors(t *testing.T) {
	tree := BuildTree(entriesFor("docs/readme.txt"))

	require.Len(t, tree, 1)
	docs := tree[0]
	assert.Equal(t, "docs", docs.Name)
	assert.Equal(t, "docs", docs.Path)
	assert.True(t, docs.IsDir())
	require.Len(t, docs.Children, 1)
	assert.Equal(t, "readme.txt", docs.Children[0].Name)
	assert.Equal(t, "docs/readme.txt", docs.Children[0].Path)
}

func TestBuildTree_NoDuplicateDirectories(t *testing.T) {
	tree := BuildTree(entriesFor(
		"x/y/1.txt",
		"x/y/2.txt",
		"x/",
		"x/y/",
		"x/z.txt",
	))

	require.Len(t, tree, 1)
	x := tree[0]
	require.Len(t, x.Children, 2)
	assert.Equal(t, "y", x.Children[0].Name)
	assert.Equal(t, "z.txt", x.Children[1].Name)
	assert.Len(t, x.Children[0].Children, 2)
}

func TestBuildTree_SortedRecursively(t *testing.T) {
	tree := BuildTree(entriesFor("d/b.txt", "d/a.txt", "d/sub/q.txt", "c.txt", "a.txt"))

	names := func(ns []*models.TreeNode) []string {
		var out []string
		for _, n := range ns {
			out = append(out, n.Name)
		}
		return out
	}

	assert.Equal(t, []string{"d", "a.txt", "c.txt"}, names(tree))
	assert.Equal(t, []string{"sub", "a.txt", "b.txt"}, names(tree[0].Children))
}

func TestBuildTree_FileCountAndPathsPreserved(t *testing.T) {
	paths := []string{
		"README.md",
		"src/main.go",
		"src/internal/a.go",
		"src/internal/b.go",
		"assets/img/logo.png",
		"assets/css/site.css",
		"deep/er/and/deeper/leaf.bin",
	}
	entries := entriesFor(paths...)
	entries = append(entries, models.ArchiveEntry{Path: "assets/", IsDirectory: true})

	var got []string
	collectFiles(BuildTree(entries), &got)

	want := append([]string(nil), paths...)
	sort.Strings(want)
	sort.Strings(got)
	assert.Equal(t, want, got)
}

func TestBuildTree_OrderIndependent(t *testing.T) {
	paths := []string{"a/b/c.txt", "a/d.txt", "e.txt", "a/b/f.txt", "g/h.txt"}
	first := BuildTree(entriesFor(paths...))

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := append([]string(nil), paths...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, first, BuildTree(entriesFor(shuffled...)))
	}
}

func TestBuildTree_Empty(t *testing.T) {
	assert.Empty(t, BuildTree(nil))
}
