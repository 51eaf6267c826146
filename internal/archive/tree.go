package archive

import (
	"sort"
	"strings"

	"sxbin-backend/internal/models"
)

// BuildTree turns a flat entry list into nested directory nodes and returns the
// children of a synthetic root. Intermediate directories are created on demand
// and each directory is created once no matter how many entries pass through it.
// Children are ordered directories first, then by name, at every level.
func BuildTree(entries []models.ArchiveEntry) []*models.TreeNode {
	root := &models.TreeNode{Type: models.NodeDirectory}
	dirs := map[string]*models.TreeNode{"": root}

	ensureDir := func(segments []string) *models.TreeNode {
		parent := root
		for i := range segments {
			p := strings.Join(segments[:i+1], "/")
			node, ok := dirs[p]
			if !ok {
				node = &models.TreeNode{
					Name: segments[i],
					Path: p,
					Type: models.NodeDirectory,
				}
				dirs[p] = node
				parent.Children = append(parent.Children, node)
			}
			parent = node
		}
		return parent
	}

	for _, e := range entries {
		segments := splitPath(e.Path)
		if len(segments) == 0 {
			continue
		}

		if e.IsDirectory || strings.HasSuffix(e.Path, "/") {
			ensureDir(segments)
			continue
		}

		parent := ensureDir(segments[:len(segments)-1])
		modified := e.LastModified
		parent.Children = append(parent.Children, &models.TreeNode{
			Name:         segments[len(segments)-1],
			Path:         e.Path,
			Type:         models.NodeFile,
			Size:         e.Size,
			LastModified: &modified,
		})
	}

	sortTree(root)
	return root.Children
}

func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func sortTree(n *models.TreeNode) {
	sort.SliceStable(n.Children, func(i, j int) bool {
		a, b := n.Children[i], n.Children[j]
		if a.IsDir() != b.IsDir() {
			return a.IsDir()
		}
		return a.Name < b.Name
	})
	for _, c := range n.Children {
		if c.IsDir() {
			sortTree(c)
		}
	}
}
