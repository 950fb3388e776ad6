package manager

import (
	"context"
	"fmt"

	"github.com/leadscope/leadscope/pkg/lead"
	"github.com/tidwall/gjson"
)

// Failure describes one record skipped during a batch.
type Failure struct {
	Index int
	Err   error
}

// IngestResult is the outcome of a batch: ids of the accepted records in
// input order and the records that were skipped.
type IngestResult struct {
	IDs      []int64
	Failures []Failure
}

// IngestBatch adds and scores every record. A record that fails validation
// or collides with an existing key is skipped; the rest are still ingested.
// The only error returned is context cancellation, with the partial result.
func (m *Manager) IngestBatch(ctx context.Context, records []lead.RawRecord) (*IngestResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := &IngestResult{IDs: make([]int64, 0, len(records))}
	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		l, err := m.addLocked(r)
		if err != nil {
			m.log.Warnf("Skipping lead %d of batch: %v", i, err)
			result.Failures = append(result.Failures, Failure{Index: i, Err: err})
			continue
		}
		result.IDs = append(result.IDs, l.ID)
	}
	m.log.Infof("Ingested %d of %d leads", len(result.IDs), len(records))
	return result, nil
}

// IngestJSON ingests a JSON document holding either an array of lead objects
// or an object with a "leads" array. Any other shape is rejected as a whole
// with a StructuralIngestError.
func (m *Manager) IngestJSON(ctx context.Context, data []byte) (*IngestResult, error) {
	records, err := ParseRecords(data)
	if err != nil {
		return nil, err
	}
	return m.IngestBatch(ctx, records)
}

// ParseRecords extracts raw lead records from a JSON document.
func ParseRecords(data []byte) ([]lead.RawRecord, error) {
	if !gjson.ValidBytes(data) {
		return nil, &lead.StructuralIngestError{Reason: "not valid JSON"}
	}

	root := gjson.ParseBytes(data)
	var list gjson.Result
	switch {
	case root.IsArray():
		list = root
	case root.IsObject() && root.Get("leads").IsArray():
		list = root.Get("leads")
	default:
		return nil, &lead.StructuralIngestError{Reason: "expected an array of leads or an object with a \"leads\" array"}
	}

	items := list.Array()
	records := make([]lead.RawRecord, 0, len(items))
	for i, item := range items {
		obj, ok := item.Value().(map[string]interface{})
		if !item.IsObject() || !ok {
			return nil, &lead.StructuralIngestError{Reason: fmt.Sprintf("element %d is not an object", i)}
		}
		records = append(records, lead.RawRecord(obj))
	}
	return records, nil
}
