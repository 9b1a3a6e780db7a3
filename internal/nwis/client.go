// Package nwis retrieves daily water-quality and streamflow records from a
// USGS NWIS-style daily values service. It is a pure data-source
// collaborator: its only job is to produce observations in the tidy table
// shape.
package nwis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/basinwatch/watertrend/internal/table"
	"go.uber.org/zap"
)

// DefaultBaseURL is the public USGS daily values endpoint.
const DefaultBaseURL = "https://waterservices.usgs.gov/nwis"

// noDataSentinel is the value NWIS uses for missing measurements when a
// series does not declare its own noDataValue.
const noDataSentinel = -999999

// Client fetches daily values from an NWIS-compatible service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// NewClient creates a client. An empty baseURL falls back to the public USGS
// endpoint.
func NewClient(baseURL string, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchDaily retrieves one site/parameter series for the given date range and
// converts it into observations. Missing-value sentinels are dropped, not
// passed through as concentrations.
func (c *Client) FetchDaily(ctx context.Context, site Site, param Parameter, start, end time.Time) ([]table.Observation, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("sites", site.ID)
	q.Set("parameterCd", param.Code)
	q.Set("startDT", start.Format("2006-01-02"))
	q.Set("endDT", end.Format("2006-01-02"))

	reqURL := fmt.Sprintf("%s/dv/?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch daily values for site %s: %w", site.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d for site %s parameter %s", resp.StatusCode, site.ID, param.Code)
	}

	var result dailyValuesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode daily values response: %w", err)
	}

	obs := c.toObservations(result, site, param)
	if c.logger != nil {
		c.logger.Debugw("fetched daily values",
			"site", site.ID, "parameter", param.Code, "observations", len(obs))
	}
	return obs, nil
}

func (c *Client) toObservations(resp dailyValuesResponse, site Site, param Parameter) []table.Observation {
	var obs []table.Observation

	for _, series := range resp.Value.TimeSeries {
		noData := series.Variable.NoDataValue
		if noData == 0 {
			noData = noDataSentinel
		}

		for _, block := range series.Values {
			for _, v := range block.Value {
				value, err := strconv.ParseFloat(v.Value, 64)
				if err != nil {
					continue
				}
				if value == noData {
					continue
				}
				date, err := parseNWISTime(v.DateTime)
				if err != nil {
					if c.logger != nil {
						c.logger.Warnf("skipping observation with unparseable timestamp %q: %v", v.DateTime, err)
					}
					continue
				}
				obs = append(obs, table.Observation{
					SiteID:        site.ID,
					Parameter:     param.Name,
					Basin:         site.Basin,
					Date:          date,
					Concentration: value,
				})
			}
		}
	}

	return obs
}

// nwisTimeLayouts covers the timestamp shapes NWIS emits: zoned, unzoned, and
// bare dates.
var nwisTimeLayouts = []string{
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseNWISTime(s string) (time.Time, error) {
	for _, layout := range nwisTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}
