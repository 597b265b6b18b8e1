package storage

import (
	"context"
	"time"

	"github.com/Sriram-PR/headless-crawler/pkg/models"
)

// ResultWriter records the outcome of attempted links
type ResultWriter interface {
	// PutResult stores entry under url, replacing any previous entry
	PutResult(url string, entry *models.ResultDBEntry) error
}

// ResultReader looks up recorded outcomes
type ResultReader interface {
	// GetResult returns ResultStatusUnset and a nil entry when url is unknown
	GetResult(url string) (models.ResultStatus, *models.ResultDBEntry, error)

	// ForEach visits every entry in key order until fn returns an error or ctx is done
	ForEach(ctx context.Context, fn func(url string, entry models.ResultDBEntry) error) error

	// Count returns the number of distinct URLs stored
	Count() int
}

// ResultStore combines the result interfaces with lifecycle operations
type ResultStore interface {
	ResultWriter
	ResultReader

	// WriteResultLog writes one tab-separated line per entry to filePath
	WriteResultLog(ctx context.Context, filePath string) error

	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	Close() error
}
