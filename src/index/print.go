package index

import (
	"cmp"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"simple-db-golang/src/common"
)

// ToString pretty-prints the tree rank by rank, for debugging.
func (t *BPlusTree[K]) ToString() string {
	if t.IsEmpty() {
		return "Empty tree"
	}

	var out strings.Builder
	todo := []common.PageId{t.RootPageId()}
	for len(todo) > 0 {
		var next []common.PageId
		out.WriteString("| ")
		for _, pageId := range todo {
			page, err := t.bufferPoolManager.FetchPage(pageId)
			if err != nil {
				log.WithError(err).Fatalf("Cannot fetch page %d while printing.", pageId)
			}
			hdr := headerOf(page.Data())
			if hdr.Type() == leafPageType {
				leaf := createLeafPage[K](page.Data())
				out.WriteString(leafString(leaf))
			} else {
				internal := createInternalPage[K](page.Data())
				out.WriteString(internalString(internal))
				for i := 0; i < int(internal.Size()); i++ {
					next = append(next, internal.ValueAt(i))
				}
			}
			out.WriteString("| ")
			t.bufferPoolManager.UnpinPage(page.PageId(), false)
		}
		out.WriteString("\n")
		todo = next
	}
	return out.String()
}

func leafString[K cmp.Ordered](leaf *LeafPage[K]) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "leaf(%d)[", leaf.PageId())
	for i := 0; i < int(leaf.Size()); i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "%v", leaf.KeyAt(i))
	}
	sb.WriteString("]")
	return sb.String()
}

func internalString[K cmp.Ordered](internal *InternalPage[K]) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "internal(%d)[", internal.PageId())
	for i := 1; i < int(internal.Size()); i++ {
		if i > 1 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "%v", internal.KeyAt(i))
	}
	sb.WriteString("]")
	return sb.String()
}
