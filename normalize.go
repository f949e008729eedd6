package main

// NormalizeRecord coerces an arbitrary field mapping into a complete, valid
// CodingRecord. Every registered field is present in the result; enumerated
// values outside their allowed set are replaced by the field's fallback;
// free-text values pass through untouched, including empty strings. Keys in
// raw that are not registered are dropped. The function is total: it never
// fails, however malformed raw is — this is the safety net beneath the model
// output, which may omit required fields or invent enum labels.
func NormalizeRecord(raw map[string]string) CodingRecord {
	out := make(CodingRecord, len(fieldRegistry))
	for _, def := range fieldRegistry {
		val := raw[def.Name]
		if def.Allowed != nil && !containsValue(def.Allowed, val) {
			val = def.Fallback
		}
		out[def.Name] = val
	}
	return out
}
