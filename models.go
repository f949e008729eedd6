package main

// CodingRecord maps every registered codebook field to its string value. A
// record that has passed through NormalizeRecord is complete (all registered
// fields present) and valid (every enumerated field holds an allowed value).
type CodingRecord map[string]string

// Clone returns an independent copy of the record.
func (r CodingRecord) Clone() CodingRecord {
	out := make(CodingRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// PendingRecord is one normalized-and-QC'd row awaiting reviewer confirmation.
// The ID keys Slack interaction callbacks so a stale button press cannot act
// on a different record.
type PendingRecord struct {
	ID     string
	Record CodingRecord
}
