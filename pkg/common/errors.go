package common

import "errors"

var (
	// ErrNotFound is returned when a referenced article is not in the store.
	ErrNotFound = errors.New("article not found")
	// ErrDuplicateArticle is returned when an article ID is ingested twice.
	ErrDuplicateArticle = errors.New("article already exists")
	// ErrClassifierUnavailable marks a classifier call that failed or timed out.
	ErrClassifierUnavailable = errors.New("causal classifier unavailable")
	// ErrClassifierMalformed marks a classifier response that could not be parsed.
	ErrClassifierMalformed = errors.New("causal classifier returned a malformed response")
	// ErrConfiguration is returned at startup when required settings are missing.
	ErrConfiguration = errors.New("configuration error")
	// ErrEmptyCorpus is returned when a graph is built over zero articles.
	ErrEmptyCorpus = errors.New("article corpus is empty")
	// ErrGraphNotReady is returned by operations that need a built graph.
	ErrGraphNotReady = errors.New("causation graph is not built")
)
