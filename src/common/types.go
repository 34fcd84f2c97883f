package common

// PageId identifies a page on the data file. It is monotonically allocated
// by the disk manager; INVALID_PAGE_ID denotes "no page".
type PageId int32

// TxnId identifies a transaction. Wait-die compares these directly, so
// allocation must be monotonic: a larger id always means a younger
// transaction.
type TxnId int32

// Lsn is a log sequence number, monotonically increasing.
type Lsn int32

const (
	InvalidPageId PageId = -1
	InvalidTxnId  TxnId  = -1
	InvalidLsn    Lsn    = -1

	// HeaderPageId is page 0. No package refers to it: in the engine page 0
	// holds the table heap's header page, and the index-name -> root-page-id
	// table lives on the page id passed to NewBPlusTree (page 1).
	HeaderPageId PageId = 0
)
