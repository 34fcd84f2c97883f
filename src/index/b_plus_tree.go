package index

import (
	"cmp"
	"sync"

	log "github.com/sirupsen/logrus"

	"simple-db-golang/src/common"
	"simple-db-golang/src/concurrency"
	"simple-db-golang/src/disk"
)

// opKind selects the latch-crabbing discipline for a descent: Read takes
// read latches and releases the parent as soon as the child is latched;
// Insert/Delete take write latches down the path and release ancestors
// once the current node is proven safe.
type opKind int

const (
	opRead opKind = iota
	opInsert
	opDelete
)

// BPlusTree is a concurrent ordered index over key type K, mapping to
// table heap record ids. One instance owns one registered name in the
// engine-wide header page, and rootPageId is the process-wide cache of
// that registration guarded by rootLatch.
type BPlusTree[K cmp.Ordered] struct {
	name              string
	bufferPoolManager *disk.BufferPoolManager
	headerPageId      common.PageId

	rootLatch  sync.RWMutex
	rootPageId common.PageId
}

func NewBPlusTree[K cmp.Ordered](name string, bufferPoolManager *disk.BufferPoolManager, headerPageId common.PageId) *BPlusTree[K] {
	tree := &BPlusTree[K]{
		name:              name,
		bufferPoolManager: bufferPoolManager,
		headerPageId:      headerPageId,
		rootPageId:        common.InvalidPageId,
	}
	headerPage, err := bufferPoolManager.FetchPage(headerPageId)
	if err != nil {
		log.WithError(err).Fatalf("Cannot fetch index header page.")
	}
	headerPage.RLock()
	hp := createHeaderPage(headerPage.Data())
	if rootId, ok := hp.GetRootId(name); ok {
		tree.rootPageId = rootId
	}
	headerPage.RUnlock()
	bufferPoolManager.UnpinPage(headerPageId, false)
	return tree
}

func (t *BPlusTree[K]) Name() string { return t.name }

func (t *BPlusTree[K]) RootPageId() common.PageId {
	t.rootLatch.RLock()
	defer t.rootLatch.RUnlock()
	return t.rootPageId
}

func (t *BPlusTree[K]) IsEmpty() bool {
	return t.RootPageId() == common.InvalidPageId
}

func (t *BPlusTree[K]) updateHeaderRoot(newRoot common.PageId, isNewIndex bool) {
	headerPage, err := t.bufferPoolManager.FetchPage(t.headerPageId)
	if err != nil {
		log.WithError(err).Fatalf("Cannot fetch index header page.")
	}
	headerPage.Lock()
	hp := createHeaderPage(headerPage.Data())
	if isNewIndex {
		hp.InsertRecord(t.name, newRoot)
	} else {
		hp.UpdateRecord(t.name, newRoot)
	}
	headerPage.Unlock()
	t.bufferPoolManager.UnpinPage(t.headerPageId, true)
}

func (t *BPlusTree[K]) lockRoot(op opKind) {
	if op == opRead {
		t.rootLatch.RLock()
	} else {
		t.rootLatch.Lock()
	}
}

func (t *BPlusTree[K]) unlockRoot(op opKind) {
	if op == opRead {
		t.rootLatch.RUnlock()
	} else {
		t.rootLatch.Unlock()
	}
}

// latchPage takes the page's physical latch for op and, for write ops,
// records it on txn's page-set so it can be released in bulk later.
func latchPage(page *disk.Page, op opKind, txn *concurrency.Transaction) {
	if op == opRead {
		page.RLock()
		return
	}
	page.Lock()
	if txn != nil {
		txn.AddToPageSet(page)
	}
}

// pageHeld reports whether page is already write-latched on txn's
// page-set, so SMO code walking back up the tree can reuse that latch
// instead of calling Lock() again on a RWMutex that isn't reentrant.
func pageHeld(txn *concurrency.Transaction, page *disk.Page) bool {
	for _, p := range txn.PageSet() {
		if p == page {
			return true
		}
	}
	return false
}

func isSafeLeaf(size, maxSize int32, op opKind) bool {
	if op == opInsert {
		return size < maxSize-1
	}
	minSize := maxSize / 2
	return size > minSize
}

func isSafeInternal(size, maxSize int32, op opKind) bool {
	if op == opInsert {
		return size < maxSize
	}
	minSize := (maxSize + 1) / 2
	return size > minSize
}

// findLeafPage descends from the root to the leaf that would hold k,
// latch-crabbing along the way: a child is latched before its parent (or
// the root latch, for the first step) is released. Read ops release
// immediately; write ops accumulate latches on txn.pageSet and release
// ancestors in bulk as soon as the freshly-latched node is provably safe.
func (t *BPlusTree[K]) findLeafPage(k K, op opKind, txn *concurrency.Transaction) (*disk.Page, *LeafPage[K]) {
	return t.descend(op, txn, func(internal *InternalPage[K]) common.PageId {
		return internal.Lookup(k)
	})
}

// findLeftmostLeafPage descends to the smallest-keyed leaf, for Begin().
func (t *BPlusTree[K]) findLeftmostLeafPage() (*disk.Page, *LeafPage[K]) {
	return t.descend(opRead, nil, func(internal *InternalPage[K]) common.PageId {
		return internal.ValueAt(0)
	})
}

func (t *BPlusTree[K]) descend(op opKind, txn *concurrency.Transaction, chooseChild func(*InternalPage[K]) common.PageId) (*disk.Page, *LeafPage[K]) {
	t.lockRoot(op)
	rootHeld := true

	pageId := t.rootPageId
	page, err := t.bufferPoolManager.FetchPage(pageId)
	if err != nil {
		log.WithError(err).Fatalf("Cannot fetch B+Tree root page %d.", pageId)
	}
	latchPage(page, op, txn)

	if op == opRead {
		t.unlockRoot(op)
		rootHeld = false
	} else if headerOf(page.Data()).isSafe(op) {
		t.unlockRoot(op)
		rootHeld = false
	}

	for headerOf(page.Data()).Type() == internalPageType {
		internal := createInternalPage[K](page.Data())
		childId := chooseChild(internal)
		childPage, childErr := t.bufferPoolManager.FetchPage(childId)
		if childErr != nil {
			log.WithError(childErr).Fatalf("Cannot fetch B+Tree page %d.", childId)
		}
		latchPage(childPage, op, txn)

		if op == opRead {
			page.RUnlock()
			t.bufferPoolManager.UnpinPage(page.PageId(), false)
		} else if headerOf(childPage.Data()).isSafe(op) {
			t.freeAncestors(txn, childPage)
			if rootHeld {
				t.unlockRoot(op)
				rootHeld = false
			}
		}
		page = childPage
	}

	if rootHeld {
		t.unlockRoot(op)
	}
	return page, createLeafPage[K](page.Data())
}

// freeAncestors releases every latched page in txn's page-set except
// keep (the node just proven safe), unpinning each dirty since write ops
// only ever latch pages they might mutate.
func (t *BPlusTree[K]) freeAncestors(txn *concurrency.Transaction, keep *disk.Page) {
	if txn == nil {
		return
	}
	pageSet := txn.PageSet()
	remaining := make([]*disk.Page, 0, 1)
	for _, p := range pageSet {
		if p == keep {
			remaining = append(remaining, p)
			continue
		}
		p.Unlock()
		t.bufferPoolManager.UnpinPage(p.PageId(), true)
	}
	txn.ClearPageSet()
	for _, p := range remaining {
		txn.AddToPageSet(p)
	}
}

// freePagesInTransaction releases every page latch this transaction's
// in-flight B+Tree operation still holds, on the way out (success or
// failure), and applies any page deletions deferred during a coalesce.
func (t *BPlusTree[K]) freePagesInTransaction(txn *concurrency.Transaction, dirty bool) {
	if txn == nil {
		return
	}
	for _, p := range txn.PageSet() {
		p.Unlock()
		t.bufferPoolManager.UnpinPage(p.PageId(), dirty)
	}
	txn.ClearPageSet()
	for pageId := range txn.DeletedPageSet() {
		t.bufferPoolManager.DeletePage(pageId)
	}
	txn.ClearDeletedPageSet()
}

// GetValue looks up k, descending with read latches.
func (t *BPlusTree[K]) GetValue(k K, txn *concurrency.Transaction) (common.RID, bool) {
	if t.IsEmpty() {
		return common.RID{}, false
	}
	leafPage, leaf := t.findLeafPage(k, opRead, nil)
	v, found := leaf.Lookup(k)
	leafPage.RUnlock()
	t.bufferPoolManager.UnpinPage(leafPage.PageId(), false)
	return v, found
}

// Insert adds (k, v). Returns false if k is already present.
func (t *BPlusTree[K]) Insert(k K, v common.RID, txn *concurrency.Transaction) bool {
	t.rootLatch.Lock()
	empty := t.rootPageId == common.InvalidPageId
	if empty {
		ok := t.startNewTreeLocked(k, v)
		t.rootLatch.Unlock()
		return ok
	}
	t.rootLatch.Unlock()
	if txn == nil {
		txn = concurrency.NewTransaction()
	}
	return t.insertIntoLeaf(k, v, txn)
}

func (t *BPlusTree[K]) startNewTreeLocked(k K, v common.RID) bool {
	page, err := t.bufferPoolManager.NewPage()
	if err != nil {
		log.WithError(err).Fatalf("Cannot allocate new B+Tree root page.")
	}
	leaf := createLeafPage[K](page.Data())
	leaf.init(page.PageId(), invalidPageId, len(page.Data()))
	leaf.Insert(k, v)

	t.rootPageId = page.PageId()
	t.updateHeaderRoot(page.PageId(), true)

	t.bufferPoolManager.UnpinPage(page.PageId(), true)
	return true
}

func (t *BPlusTree[K]) insertIntoLeaf(k K, v common.RID, txn *concurrency.Transaction) bool {
	leafPage, leaf := t.findLeafPage(k, opInsert, txn)
	if _, found := leaf.Lookup(k); found {
		t.freePagesInTransaction(txn, false)
		return false
	}

	newSize := leaf.Insert(k, v)
	if newSize > leaf.MaxSize() {
		newLeafPage, newLeaf := t.split(leaf)
		separator := newLeaf.KeyAt(0)
		t.insertIntoParent(leafPage, separator, newLeafPage, txn)
		newLeafPage.Unlock()
		t.bufferPoolManager.UnpinPage(newLeafPage.PageId(), true)
	}

	t.freePagesInTransaction(txn, true)
	return true
}

func (t *BPlusTree[K]) split(leaf *LeafPage[K]) (*disk.Page, *LeafPage[K]) {
	page, err := t.bufferPoolManager.NewPage()
	if err != nil {
		log.WithError(err).Fatalf("Cannot allocate page for B+Tree split.")
	}
	page.Lock()
	newLeaf := createLeafPage[K](page.Data())
	newLeaf.init(page.PageId(), leaf.ParentId(), len(page.Data()))
	leaf.MoveHalfTo(newLeaf)
	return page, newLeaf
}

func (t *BPlusTree[K]) splitInternal(internal *InternalPage[K]) (*disk.Page, *InternalPage[K], K) {
	page, err := t.bufferPoolManager.NewPage()
	if err != nil {
		log.WithError(err).Fatalf("Cannot allocate page for B+Tree internal split.")
	}
	page.Lock()
	newInternal := createInternalPage[K](page.Data())
	newInternal.init(page.PageId(), internal.ParentId(), len(page.Data()))

	total := int(internal.Size())
	splitIdx := (total + 1) / 2
	entries := internal.entries()
	separator := entries[splitIdx].key

	dstRaw := newInternal.rawEntries()
	copy(dstRaw[:total-splitIdx], entries[splitIdx:total])
	newInternal.size = int32(total - splitIdx)
	internal.size = int32(splitIdx)

	t.reparentChildren(newInternal)
	return page, newInternal, separator
}

// reparentChildren fixes up parent_id on every child an internal split
// or merge just moved into dst.
func (t *BPlusTree[K]) reparentChildren(dst *InternalPage[K]) {
	for i := 0; i < int(dst.Size()); i++ {
		childId := dst.ValueAt(i)
		childPage, err := t.bufferPoolManager.FetchPage(childId)
		if err != nil {
			log.WithError(err).Fatalf("Cannot fetch migrated child %d.", childId)
		}
		childPage.Lock()
		headerOf(childPage.Data()).SetParentId(dst.PageId())
		childPage.Unlock()
		t.bufferPoolManager.UnpinPage(childId, true)
	}
}

// insertIntoParent wires newNode into oldPage's parent under separator,
// splitting and recursing up the tree as needed, and growing a new root
// when oldPage was the root.
func (t *BPlusTree[K]) insertIntoParent(oldPage *disk.Page, separator K, newPage *disk.Page, txn *concurrency.Transaction) {
	oldParentId := headerOf(oldPage.Data()).ParentId()
	newPageHeader := headerOf(newPage.Data())

	if oldParentId == invalidPageId {
		rootPage, err := t.bufferPoolManager.NewPage()
		if err != nil {
			log.WithError(err).Fatalf("Cannot allocate new B+Tree root page.")
		}
		rootPage.Lock()
		root := createInternalPage[K](rootPage.Data())
		root.init(rootPage.PageId(), invalidPageId, len(rootPage.Data()))
		root.PopulateNewRoot(oldPage.PageId(), separator, newPage.PageId())

		headerOf(oldPage.Data()).SetParentId(rootPage.PageId())
		newPageHeader.SetParentId(rootPage.PageId())

		t.rootLatch.Lock()
		t.rootPageId = rootPage.PageId()
		t.updateHeaderRoot(rootPage.PageId(), false)
		t.rootLatch.Unlock()

		rootPage.Unlock()
		t.bufferPoolManager.UnpinPage(rootPage.PageId(), true)
		return
	}

	parentPage, parent := t.fetchInternalLocked(oldParentId, txn)
	newPageHeader.SetParentId(oldParentId)
	newSize := parent.InsertNodeAfter(oldPage.PageId(), separator, newPage.PageId())

	if newSize > parent.MaxSize() {
		siblingPage, _, siblingSeparator := t.splitInternal(parent)
		t.insertIntoParent(parentPage, siblingSeparator, siblingPage, txn)
		siblingPage.Unlock()
		t.bufferPoolManager.UnpinPage(siblingPage.PageId(), true)
	}
	t.bufferPoolManager.UnpinPage(parentPage.PageId(), true)
}

// fetchInternalLocked fetches pageId's internal page for the insert/delete
// cascade up the tree. Every page this is ever called on is already
// write-latched on txn's page-set -- it was kept there during crabbing
// descent precisely because the path below it was unsafe. The cascade
// only climbs past a node that overflowed (insert) or fell below its
// minimum (delete), and such a node was unsafe during descent, so the
// parent it climbs to was kept rather than released.
// Reuse the held latch instead of calling Lock() again: sync.RWMutex
// isn't reentrant and a second Lock() here would self-deadlock.
func (t *BPlusTree[K]) fetchInternalLocked(pageId common.PageId, txn *concurrency.Transaction) (*disk.Page, *InternalPage[K]) {
	page, err := t.bufferPoolManager.FetchPage(pageId)
	if err != nil {
		log.WithError(err).Fatalf("Cannot fetch B+Tree internal page %d.", pageId)
	}
	if !pageHeld(txn, page) {
		page.Lock()
	}
	return page, createInternalPage[K](page.Data())
}

// Remove deletes k, coalescing or redistributing underflowing nodes up
// the tree as needed.
func (t *BPlusTree[K]) Remove(k K, txn *concurrency.Transaction) bool {
	if t.IsEmpty() {
		return false
	}
	if txn == nil {
		txn = concurrency.NewTransaction()
	}
	leafPage, leaf := t.findLeafPage(k, opDelete, txn)
	_, found := leaf.Delete(k)
	if !found {
		t.freePagesInTransaction(txn, false)
		return false
	}

	t.coalesceOrRedistribute(leafPage, txn)
	t.freePagesInTransaction(txn, true)
	return true
}

// coalesceOrRedistribute handles an underflowing node (leaf or internal)
// after a delete: the root is special-cased via adjustRoot; otherwise a
// sibling is chosen and the node either merges into it or borrows from
// it, recursing on the parent when a merge underflows it in turn.
//
// page always arrives already write-latched on txn's page-set (either the
// original leaf Remove descended to, or an ancestor this function walked
// up to itself), so its lock and pin are released by the caller's
// transaction bookkeeping, not by this function.
func (t *BPlusTree[K]) coalesceOrRedistribute(page *disk.Page, txn *concurrency.Transaction) {
	hdr := headerOf(page.Data())
	if hdr.ParentId() == invalidPageId {
		t.adjustRoot(page, txn)
		return
	}

	// Only a node that fell below its minimum rebalances. A node left at
	// exactly its minimum was above it before this delete, so the descent
	// released its parent.
	minSize := hdr.MaxSize() / 2
	if hdr.Type() == internalPageType {
		minSize = (hdr.MaxSize() + 1) / 2
	}
	if hdr.Size() >= minSize {
		return
	}

	parentPage, parent := t.fetchInternalLocked(hdr.ParentId(), txn)
	idx := parent.ValueIndex(page.PageId())

	nodeIsLeft := idx == 0
	siblingIdx := idx - 1
	if nodeIsLeft {
		siblingIdx = idx + 1
	}
	siblingId := parent.ValueAt(siblingIdx)
	siblingPage, err := t.bufferPoolManager.FetchPage(siblingId)
	if err != nil {
		log.WithError(err).Fatalf("Cannot fetch sibling page %d.", siblingId)
	}
	siblingPage.Lock()

	// A merge always combines left+right and deletes the right-hand page,
	// whichever of page/siblingPage that physically is.
	var leftPage, rightPage *disk.Page
	var rightIdx int
	if nodeIsLeft {
		leftPage, rightPage, rightIdx = page, siblingPage, siblingIdx
	} else {
		leftPage, rightPage, rightIdx = siblingPage, page, idx
	}

	capacity := headerOf(rightPage.Data()).MaxSize()
	canCoalesce := headerOf(leftPage.Data()).Size()+headerOf(rightPage.Data()).Size() <= capacity

	if canCoalesce {
		t.mergeRight(leftPage, rightPage, parent, rightIdx)

		if rightPage == page {
			// siblingPage is the surviving left page: release its locally
			// held latch and pin normally, then dispose of page (the right
			// page that was just merged away).
			siblingPage.Unlock()
			t.bufferPoolManager.UnpinPage(siblingPage.PageId(), true)
			t.releasePage(page, txn, false)
		} else {
			// page is the surviving left page, left for the caller to
			// release as usual; siblingPage (the right page) is deleted.
			t.releasePage(siblingPage, nil, true)
		}

		if !isSafeInternal(parent.Size(), parent.MaxSize(), opDelete) {
			t.coalesceOrRedistribute(parentPage, txn)
		}
		t.bufferPoolManager.UnpinPage(parentPage.PageId(), true)
		return
	}

	t.redistribute(siblingPage, page, parent, siblingIdx, idx)
	siblingPage.Unlock()
	t.bufferPoolManager.UnpinPage(siblingPage.PageId(), true)
	t.bufferPoolManager.UnpinPage(parentPage.PageId(), true)
}

// mergeRight merges right's entries into left and removes right's slot
// from parent. It never touches right's lock, pin or deletion -- the
// caller decides that, since right may alias the page it was handed.
func (t *BPlusTree[K]) mergeRight(left, right *disk.Page, parent *InternalPage[K], rightIdx int) {
	if headerOf(right.Data()).Type() == leafPageType {
		r := createLeafPage[K](right.Data())
		l := createLeafPage[K](left.Data())
		r.MoveAllTo(l)
	} else {
		r := createInternalPage[K](right.Data())
		l := createInternalPage[K](left.Data())
		separator := parent.KeyAt(rightIdx)
		r.MoveAllTo(l, separator)
		t.reparentChildren(l)
	}
	parent.Remove(rightIdx)
}

// releasePage disposes of a page that has just been merged or coalesced
// away. If manual is false, page's lock and pin are left for the caller's
// transaction bookkeeping to release in bulk, and only the eventual
// delete is deferred into txn's deleted-page set.
func (t *BPlusTree[K]) releasePage(page *disk.Page, txn *concurrency.Transaction, manual bool) {
	if !manual {
		txn.AddToDeletedPageSet(page.PageId())
		return
	}
	page.Unlock()
	t.bufferPoolManager.UnpinPage(page.PageId(), true)
	t.bufferPoolManager.DeletePage(page.PageId())
}

// redistribute borrows one entry across the node/neighbor boundary to
// relieve node's underflow, updating the parent's separator key.
func (t *BPlusTree[K]) redistribute(neighborPage, nodePage *disk.Page, parent *InternalPage[K], neighborIdx, nodeIdx int) {
	neighborIsLeft := neighborIdx < nodeIdx
	if headerOf(nodePage.Data()).Type() == leafPageType {
		node := createLeafPage[K](nodePage.Data())
		neighbor := createLeafPage[K](neighborPage.Data())
		if neighborIsLeft {
			neighbor.MoveLastToFrontOf(node)
			parent.SetKeyAt(nodeIdx, node.KeyAt(0))
		} else {
			neighbor.MoveFirstToEndOf(node)
			parent.SetKeyAt(neighborIdx, neighbor.KeyAt(0))
		}
		return
	}
	node := createInternalPage[K](nodePage.Data())
	neighbor := createInternalPage[K](neighborPage.Data())
	if neighborIsLeft {
		separator := parent.KeyAt(nodeIdx)
		newSeparator := neighbor.MoveLastToFrontOf(node, separator)
		parent.SetKeyAt(nodeIdx, newSeparator)
	} else {
		separator := parent.KeyAt(neighborIdx)
		neighbor.MoveFirstToEndOf(node, separator)
		parent.SetKeyAt(neighborIdx, neighbor.KeyAt(0))
	}
	t.reparentChildren(neighbor)
	t.reparentChildren(node)
}

// adjustRoot handles the two cases where the root itself needs fixing up
// after a delete: an empty root leaf empties the tree; a root internal
// with a single child promotes that child to root. rootPage follows
// coalesceOrRedistribute's contract: already latched on txn's page-set.
func (t *BPlusTree[K]) adjustRoot(rootPage *disk.Page, txn *concurrency.Transaction) {
	hdr := headerOf(rootPage.Data())
	if hdr.Type() == leafPageType {
		leaf := createLeafPage[K](rootPage.Data())
		if leaf.Size() == 0 {
			t.rootLatch.Lock()
			t.rootPageId = invalidPageId
			t.updateHeaderRoot(invalidPageId, false)
			t.rootLatch.Unlock()
			t.releasePage(rootPage, txn, false)
		}
		return
	}
	internal := createInternalPage[K](rootPage.Data())
	if internal.Size() == 1 {
		onlyChild := internal.RemoveAndReturnOnlyChild()
		childPage, err := t.bufferPoolManager.FetchPage(onlyChild)
		if err != nil {
			log.WithError(err).Fatalf("Cannot fetch new root candidate %d.", onlyChild)
		}
		// onlyChild may be the surviving page from the merge that just
		// emptied rootPage down to one entry, in which case it is already
		// latched on txn's page-set; reuse that latch instead of taking it
		// again.
		held := pageHeld(txn, childPage)
		if !held {
			childPage.Lock()
		}
		headerOf(childPage.Data()).SetParentId(invalidPageId)
		if !held {
			childPage.Unlock()
		}
		t.bufferPoolManager.UnpinPage(onlyChild, true)

		t.rootLatch.Lock()
		t.rootPageId = onlyChild
		t.updateHeaderRoot(onlyChild, false)
		t.rootLatch.Unlock()
		t.releasePage(rootPage, txn, false)
	}
}
