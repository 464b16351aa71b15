package index

// Entry records how many times a term occurs in one document.
type Entry struct {
	DocID int `json:"doc_id"`
	Count int `json:"count"`
}

// PostingList holds every Entry of one term. Order is unspecified.
type PostingList []Entry

// TermEntry pairs a term with its postings, used for diagnostic snapshots.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// Stats summarises the shape of a built index.
type Stats struct {
	DocumentCount int `json:"document_count"`
	TermCount     int `json:"term_count"`
	PostingCount  int `json:"posting_count"`
}
