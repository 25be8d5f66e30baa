package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound         = errors.New("post not found")
	ErrSlugConflict     = errors.New("slug already exists")
	ErrValidation       = errors.New("validation failed")
	ErrUnsupportedMedia = errors.New("unsupported media type")
)

// ValidationError lists the offending fields. It matches ErrValidation
// under errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
