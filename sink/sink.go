// Package sink defines the append-only unified output for accepted leads.
package sink

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Assadbaloch/Gmaps-scraper/models"
)

// Sink receives accepted leads in emission order. Implementations must not
// deduplicate; that responsibility sits entirely in the pipeline.
type Sink interface {
	Append(lead *models.Lead) error
	Close() error
}

// JSONLines appends one JSON object per line to a file.
type JSONLines struct {
	f   *os.File
	enc *json.Encoder
}

func NewJSONLines(filename string) (*JSONLines, error) {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", filename, err)
	}
	return &JSONLines{f: f, enc: json.NewEncoder(f)}, nil
}

func (j *JSONLines) Append(lead *models.Lead) error {
	if err := j.enc.Encode(lead); err != nil {
		return fmt.Errorf("append lead %q: %w", lead.BusinessName, err)
	}
	return nil
}

func (j *JSONLines) Close() error {
	return j.f.Close()
}

// Collector keeps leads in memory, preserving emission order. It backs the
// end-of-run summary and the tests.
type Collector struct {
	Leads []*models.Lead
}

func NewCollector() *Collector { return &Collector{} }

func (c *Collector) Append(lead *models.Lead) error {
	c.Leads = append(c.Leads, lead)
	return nil
}

func (c *Collector) Close() error { return nil }

// Multi fans each lead out to several sinks, stopping at the first error.
type Multi []Sink

func (m Multi) Append(lead *models.Lead) error {
	for _, s := range m {
		if err := s.Append(lead); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Close() error {
	var firstErr error
	for _, s := range m {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
