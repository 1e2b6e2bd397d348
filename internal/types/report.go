package types

// DefaultTopMembers is the number of most-active members returned when none is requested
const DefaultTopMembers = 10

// ReportFilter bounds the window used by the stats projection
type ReportFilter struct {
	*TimeRangeFilter
	TopN int `json:"top_n,omitempty" form:"top_n" validate:"omitempty,min=1,max=100"`
}

func (f ReportFilter) Validate() error {
	if f.TimeRangeFilter != nil {
		if err := f.TimeRangeFilter.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetTopN returns the requested size of the most-active list or the default
func (f ReportFilter) GetTopN() int {
	if f.TopN <= 0 {
		return DefaultTopMembers
	}
	return f.TopN
}
