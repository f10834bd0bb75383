package loader

import (
	"github.com/mitchellh/copystructure"
)

// nestedFields are merged key by key rather than replaced.
var nestedFields = []string{"metadata", "config"}

// MergeRecord overlays over onto base. Scalars in over replace those in base;
// metadata and config maps are shallow-merged with over winning. Neither
// input is modified.
func MergeRecord(base, over map[string]any) map[string]any {
	out := cloneMap(base)
	if out == nil {
		out = make(map[string]any, len(over))
	}
	for k, v := range over {
		out[k] = cloneValue(v)
	}
	for _, field := range nestedFields {
		baseMap, okBase := base[field].(map[string]any)
		overMap, okOver := over[field].(map[string]any)
		if !okBase || !okOver {
			continue
		}
		merged := cloneMap(baseMap)
		for k, v := range overMap {
			merged[k] = cloneValue(v)
		}
		out[field] = merged
	}
	return out
}

// recordSet keeps records keyed by name in first-seen order. Unnamed records
// are kept apart so each one is rejected on its own.
type recordSet struct {
	records []map[string]any
	index   map[string]int
}

func newRecordSet() *recordSet {
	return &recordSet{index: make(map[string]int)}
}

func (s *recordSet) add(name string, record map[string]any) {
	if name == "" {
		s.records = append(s.records, cloneMap(record))
		return
	}
	i, ok := s.index[name]
	if !ok {
		s.index[name] = len(s.records)
		s.records = append(s.records, cloneMap(record))
		return
	}
	s.records[i] = MergeRecord(s.records[i], record)
}

func (s *recordSet) list() []map[string]any {
	return append([]map[string]any(nil), s.records...)
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	if copied, err := copystructure.Copy(in); err == nil {
		if out, ok := copied.(map[string]any); ok {
			return out
		}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneValue(v any) any {
	if copied, err := copystructure.Copy(v); err == nil {
		return copied
	}
	return v
}
