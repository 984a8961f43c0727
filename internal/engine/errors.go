package engine

import "errors"

// ErrInvalidKnowledgeBase wraps every snapshot validation failure.
var ErrInvalidKnowledgeBase = errors.New("invalid knowledge base")
