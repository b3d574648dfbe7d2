package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"policyqa/internal/domain"
)

var (
	bucketChunks    = []byte("chunks")
	bucketDocChunks = []byte("doc_chunks")
	bucketTerms     = []byte("terms")
	bucketStats     = []byte("stats")
)

// BoltStore is a bbolt-backed IndexStore for the CLI, so an ingested
// document survives process restarts. Postings for a document's term
// live under one key: "docID\x00term".
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketChunks, bucketDocChunks, bucketTerms, bucketStats} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

type chunkMeta struct {
	DocID  string           `json:"doc_id"`
	Seq    int              `json:"seq"`
	Kind   domain.ChunkKind `json:"kind"`
	Page   int              `json:"page"`
	Start  int              `json:"start"`
	End    int              `json:"end"`
	Text   string           `json:"text"`
	Tokens []string         `json:"tokens"`
}

func termKey(docID, term string) []byte {
	return append(append([]byte(docID), 0), []byte(term)...)
}

func (s *BoltStore) HasDoc(docID string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucketStats).Get([]byte(docID)) != nil
		return nil
	})
	return found, err
}

func (s *BoltStore) DeleteDoc(docID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		var ids []string
		if data := tx.Bucket(bucketDocChunks).Get([]byte(docID)); data != nil {
			if err := json.Unmarshal(data, &ids); err != nil {
				return err
			}
		}
		for _, id := range ids {
			if err := tx.Bucket(bucketChunks).Delete([]byte(id)); err != nil {
				return err
			}
		}

		// Postings share the docID prefix, so a cursor sweep removes
		// the whole namespace.
		c := tx.Bucket(bucketTerms).Cursor()
		prefix := append([]byte(docID), 0)
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Seek(prefix) {
			if err := c.Delete(); err != nil {
				return err
			}
		}

		if err := tx.Bucket(bucketDocChunks).Delete([]byte(docID)); err != nil {
			return err
		}
		return tx.Bucket(bucketStats).Delete([]byte(docID))
	})
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (s *BoltStore) PutChunk(chunk domain.Chunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := chunkMeta{
			DocID:  chunk.DocID,
			Seq:    chunk.Seq,
			Kind:   chunk.Kind,
			Page:   chunk.Page,
			Start:  chunk.Start,
			End:    chunk.End,
			Text:   chunk.Text,
			Tokens: chunk.Tokens,
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketChunks).Put([]byte(chunk.ID), data); err != nil {
			return err
		}

		var ids []string
		if existing := tx.Bucket(bucketDocChunks).Get([]byte(chunk.DocID)); existing != nil {
			if err := json.Unmarshal(existing, &ids); err != nil {
				return err
			}
		}
		for _, id := range ids {
			if id == chunk.ID {
				return nil
			}
		}
		ids = append(ids, chunk.ID)
		data, err = json.Marshal(ids)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDocChunks).Put([]byte(chunk.DocID), data)
	})
}

func (s *BoltStore) GetChunk(id string) (domain.Chunk, error) {
	var chunk domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketChunks).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("chunk not found: %s", id)
		}
		var meta chunkMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		chunk = metaToChunk(id, meta)
		return nil
	})
	return chunk, err
}

func metaToChunk(id string, meta chunkMeta) domain.Chunk {
	return domain.Chunk{
		ID:     id,
		DocID:  meta.DocID,
		Seq:    meta.Seq,
		Kind:   meta.Kind,
		Page:   meta.Page,
		Start:  meta.Start,
		End:    meta.End,
		Text:   meta.Text,
		Tokens: meta.Tokens,
	}
}

func (s *BoltStore) GetChunksByDoc(docID string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocChunks).Get([]byte(docID))
		if data == nil {
			return nil
		}
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
		for _, id := range ids {
			cdata := tx.Bucket(bucketChunks).Get([]byte(id))
			if cdata == nil {
				continue
			}
			var meta chunkMeta
			if err := json.Unmarshal(cdata, &meta); err != nil {
				return err
			}
			chunks = append(chunks, metaToChunk(id, meta))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Seq < chunks[j].Seq })
	return chunks, nil
}

func (s *BoltStore) GetChunkBySeq(docID string, seq int) (domain.Chunk, error) {
	chunks, err := s.GetChunksByDoc(docID)
	if err != nil {
		return domain.Chunk{}, err
	}
	for _, chunk := range chunks {
		if chunk.Seq == seq {
			return chunk, nil
		}
	}
	return domain.Chunk{}, fmt.Errorf("no chunk at seq %d in doc %s", seq, docID)
}

func (s *BoltStore) PutPosting(docID, term, chunkID string, tf int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		key := termKey(docID, term)
		var postings []domain.Posting
		if data := tx.Bucket(bucketTerms).Get(key); data != nil {
			if err := json.Unmarshal(data, &postings); err != nil {
				return err
			}
		}
		postings = append(postings, domain.Posting{ChunkID: chunkID, TF: tf})
		data, err := json.Marshal(postings)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketTerms).Put(key, data)
	})
}

func (s *BoltStore) GetPostings(docID, term string) ([]domain.Posting, error) {
	var postings []domain.Posting
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTerms).Get(termKey(docID, term))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &postings)
	})
	return postings, err
}

func (s *BoltStore) GetStats(docID string) (domain.Stats, error) {
	var stats domain.Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketStats).Get([]byte(docID))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &stats)
	})
	return stats, err
}

func (s *BoltStore) UpdateStats(docID string, stats domain.Stats) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketStats).Put([]byte(docID), data)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
