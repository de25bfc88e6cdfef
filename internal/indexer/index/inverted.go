// Package index provides the key → document-id set mapping used for the
// term, category, tag and language indexes.
//
// An Inverted is not synchronised; the owning engine guards every index it
// holds with a single lock so that readers never observe a partially rebuilt
// index set.
package index

import "sort"

// Inverted maps a key to the set of document IDs carrying it.
type Inverted struct {
	postings map[string]map[string]struct{}
}

func NewInverted() *Inverted {
	return &Inverted{
		postings: make(map[string]map[string]struct{}),
	}
}

// Add records docID under key. Adding an existing pair is a no-op.
func (ix *Inverted) Add(key string, docID string) {
	docs, exists := ix.postings[key]
	if !exists {
		docs = make(map[string]struct{})
		ix.postings[key] = docs
	}
	docs[docID] = struct{}{}
}

// Remove drops docID from key, deleting the key once it has no documents.
func (ix *Inverted) Remove(key string, docID string) {
	docs, exists := ix.postings[key]
	if !exists {
		return
	}
	delete(docs, docID)
	if len(docs) == 0 {
		delete(ix.postings, key)
	}
}

// Docs returns the document IDs under key in ascending order.
func (ix *Inverted) Docs(key string) []string {
	docs, exists := ix.postings[key]
	if !exists {
		return nil
	}
	return sortedIDs(docs)
}

// Keys returns every key in ascending order.
func (ix *Inverted) Keys() []string {
	keys := make([]string, 0, len(ix.postings))
	for key := range ix.postings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Each calls fn for every key with its document set. fn must not retain or
// modify docs.
func (ix *Inverted) Each(fn func(key string, docs map[string]struct{})) {
	for key, docs := range ix.postings {
		fn(key, docs)
	}
}

// Len returns the number of distinct keys.
func (ix *Inverted) Len() int {
	return len(ix.postings)
}

func sortedIDs(docs map[string]struct{}) []string {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
