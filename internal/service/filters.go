package service

// HistoryFilter windows the action log of one contract.
type HistoryFilter struct {
	Limit, Offset int64
}

// Normalize applies sane defaults and bounds
func (f *HistoryFilter) Normalize() {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
