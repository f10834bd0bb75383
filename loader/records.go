package loader

import "context"

// RecordsSource serves declarations held in memory.
type RecordsSource struct {
	Label       string
	Raw         []map[string]any
	Descriptors []Descriptor
	Strategy    map[string][]string
}

// Name implements Source.
func (s *RecordsSource) Name() string {
	if s.Label == "" {
		return "records"
	}
	return s.Label
}

// Records implements Source. Raw records come before descriptors.
func (s *RecordsSource) Records(ctx context.Context) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(s.Raw)+len(s.Descriptors))
	for _, record := range s.Raw {
		out = append(out, cloneMap(record))
	}
	for _, d := range s.Descriptors {
		out = append(out, d.Record())
	}
	return out, nil
}

// Strategies implements StrategySource.
func (s *RecordsSource) Strategies(context.Context) (map[string][]string, error) {
	out := make(map[string][]string, len(s.Strategy))
	for name, names := range s.Strategy {
		out[name] = append([]string(nil), names...)
	}
	return out, nil
}
