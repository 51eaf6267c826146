package models

import "time"

type ArchiveEntry struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	IsDirectory  bool      `json:"isDirectory"`
	LastModified time.Time `json:"lastModified"`
}

type NodeType string

const (
	NodeFile      NodeType = "file"
	NodeDirectory NodeType = "directory"
)

// TreeNode is a file or directory of an archive listing. Children is only set on
// directories.
type TreeNode struct {
	Name         string      `json:"name"`
	Path         string      `json:"path"`
	Type         NodeType    `json:"type"`
	Size         int64       `json:"size,omitempty"`
	LastModified *time.Time  `json:"lastModified,omitempty"`
	Children     []*TreeNode `json:"children,omitempty"`
}

func (n *TreeNode) IsDir() bool {
	return n.Type == NodeDirectory
}
