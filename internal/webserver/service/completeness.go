package service

import (
	"os"
	"sort"

	"github.com/mdouchement/chunkd/internal/storage"
	"github.com/mdouchement/chunkd/internal/xpath"
)

// A Completeness reports which chunks of a session are stored.
type Completeness struct {
	SessionID   string `json:"sessionId"`
	Exists      bool   `json:"exists"`
	TotalChunks int    `json:"totalChunks"`
	Received    int    `json:"received"`
	Chunks      []int  `json:"chunks"`
	Missing     []int  `json:"missing"`
	Complete    bool   `json:"complete"`
}

// A CompletenessChecker determines whether all the chunks of a session have arrived.
type CompletenessChecker struct {
	storage storage.Backend
}

// NewCompletenessChecker returns a new CompletenessChecker.
func NewCompletenessChecker(storage storage.Backend) *CompletenessChecker {
	return &CompletenessChecker{
		storage: storage,
	}
}

// Check lists the stored chunks of the session against the expected total.
// Only distinct indices in [0, total) are counted.
// When total is unknown (zero or less), every stored index is reported and none is missing.
func (s *CompletenessChecker) Check(sessionID string, total int) (*Completeness, error) {
	c := &Completeness{
		SessionID:   sessionID,
		TotalChunks: total,
		Chunks:      []int{},
		Missing:     []int{},
	}

	filenames, err := s.storage.FilenamesFrom(sessionID)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, &StorageError{Op: "list chunks", Err: err}
		}
	} else {
		c.Exists = true
	}

	present := map[int]bool{}
	for _, filename := range filenames {
		index, ok := xpath.ChunkIndex(filename)
		if !ok || (total > 0 && index >= total) {
			continue
		}
		present[index] = true
	}

	for index := range present {
		c.Chunks = append(c.Chunks, index)
	}
	sort.Ints(c.Chunks)

	for index := 0; index < total; index++ {
		if !present[index] {
			c.Missing = append(c.Missing, index)
		}
	}

	c.Received = len(c.Chunks)
	c.Complete = total > 0 && c.Received == total
	return c, nil
}
