package domain

import "errors"

// ErrIngestion marks a document that could not be read or chunked.
// It is the only failure fatal to a request; everything downstream
// degrades locally instead.
var ErrIngestion = errors.New("document ingestion failed")

// ErrLLMTimeout marks a language-model call that exceeded its deadline.
var ErrLLMTimeout = errors.New("language model call timed out")

// ErrLLMService marks a language-model call rejected by the service.
var ErrLLMService = errors.New("language model service error")

// ErrDocNotFound marks a lookup for a document that was never ingested.
var ErrDocNotFound = errors.New("document not found")
