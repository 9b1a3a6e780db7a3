package nwis

// Site identifies a monitoring site in the caller's configuration. Basin is
// carried through to the observations so the table can be grouped by it.
type Site struct {
	ID    string
	Name  string
	Basin string
}

// Parameter identifies a constituent by its NWIS parameter code and the
// human-readable name used in the tidy table (e.g. "sulfate").
type Parameter struct {
	Code string
	Name string
}

// dailyValuesResponse mirrors the subset of the NWIS WaterML-JSON daily
// values response we consume.
type dailyValuesResponse struct {
	Value struct {
		TimeSeries []timeSeries `json:"timeSeries"`
	} `json:"value"`
}

type timeSeries struct {
	SourceInfo struct {
		SiteName string `json:"siteName"`
		SiteCode []struct {
			Value string `json:"value"`
		} `json:"siteCode"`
	} `json:"sourceInfo"`
	Variable struct {
		VariableCode []struct {
			Value string `json:"value"`
		} `json:"variableCode"`
		NoDataValue float64 `json:"noDataValue"`
	} `json:"variable"`
	Values []struct {
		Value []timeSeriesValue `json:"value"`
	} `json:"values"`
}

type timeSeriesValue struct {
	Value      string   `json:"value"`
	Qualifiers []string `json:"qualifiers"`
	DateTime   string   `json:"dateTime"`
}
