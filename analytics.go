package xrplsale

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// dateLayout is the calendar date format of start_date and end_date.
const dateLayout = "2006-01-02"

// DateRange bounds an analytics query. Zero bounds are omitted and the server default applies.
type DateRange struct {
	Start time.Time `url:"start_date,omitempty" layout:"2006-01-02"`
	End   time.Time `url:"end_date,omitempty" layout:"2006-01-02"`
}

// Validate rejects ranges that end before they start.
func (r DateRange) Validate() error {
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return errors.New("date range ends before it starts")
	}
	return nil
}

// PlatformAnalytics summarizes activity across the launchpad.
type PlatformAnalytics struct {
	TotalProjects    int     `json:"total_projects"`
	ActiveProjects   int     `json:"active_projects"`
	TotalRaisedXRP   string  `json:"total_raised_xrp"`
	TotalInvestors   int     `json:"total_investors"`
	TotalInvestments int     `json:"total_investments"`
	AverageRaiseXRP  string  `json:"average_raise_xrp,omitempty"`
	SuccessRate      float64 `json:"success_rate,omitempty"`
	Period           *Period `json:"period,omitempty"`
}

// Period is the window an analytics response covers.
type Period struct {
	Start Time `json:"start"`
	End   Time `json:"end"`
}

// ProjectAnalytics is the performance of a single sale over time.
type ProjectAnalytics struct {
	ProjectID       string          `json:"project_id"`
	TotalRaisedXRP  string          `json:"total_raised_xrp"`
	UniqueInvestors int             `json:"unique_investors"`
	ConversionRate  float64         `json:"conversion_rate,omitempty"`
	Daily           []DailyActivity `json:"daily,omitempty"`
	Period          *Period         `json:"period,omitempty"`
}

// DailyActivity is one day of investment activity.
type DailyActivity struct {
	Date        string `json:"date"`
	AmountXRP   string `json:"amount_xrp"`
	Investments int    `json:"investments"`
	Investors   int    `json:"investors"`
}

// InvestorAnalytics describes the portfolio of one account.
type InvestorAnalytics struct {
	InvestorAccount  string              `json:"investor_account"`
	TotalInvestedXRP string              `json:"total_invested_xrp"`
	ProjectCount     int                 `json:"project_count"`
	Portfolio        []PortfolioPosition `json:"portfolio,omitempty"`
}

// PortfolioPosition is an account's holding in one project.
type PortfolioPosition struct {
	ProjectID   string `json:"project_id"`
	TokenSymbol string `json:"token_symbol"`
	TokenAmount string `json:"token_amount"`
	InvestedXRP string `json:"invested_xrp"`
}

// MarketTrends ranks launchpad activity over a period.
type MarketTrends struct {
	Period       TrendingPeriod `json:"period"`
	VolumeXRP    string         `json:"volume_xrp"`
	VolumeChange float64        `json:"volume_change"`
	NewProjects  int            `json:"new_projects"`
	NewInvestors int            `json:"new_investors"`
	TopProjects  []Project      `json:"top_projects,omitempty"`
}

// ExportFormat is the file format of an analytics export.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
)

// ExportRequest asks the server to prepare a data export.
type ExportRequest struct {
	// DataType names the dataset, for example "investments" or "projects".
	DataType  string       `json:"data_type"`
	Format    ExportFormat `json:"format"`
	ProjectID string       `json:"project_id,omitempty"`
	// Range limits the exported records. It is sent as start_date and end_date.
	Range DateRange `json:"-"`
}

// MarshalJSON encodes Range as calendar dates, omitting zero bounds.
func (r ExportRequest) MarshalJSON() ([]byte, error) {
	type plain ExportRequest
	out := struct {
		plain
		StartDate string `json:"start_date,omitempty"`
		EndDate   string `json:"end_date,omitempty"`
	}{plain: plain(r)}

	if !r.Range.Start.IsZero() {
		out.StartDate = r.Range.Start.Format(dateLayout)
	}
	if !r.Range.End.IsZero() {
		out.EndDate = r.Range.End.Format(dateLayout)
	}
	return json.Marshal(out)
}

// Export is a prepared download.
type Export struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	DownloadURL string `json:"download_url,omitempty"`
	ExpiresAt   Time   `json:"expires_at"`
}

// AnalyticsService reads aggregated launchpad metrics.
type AnalyticsService struct {
	client *Client
}

// Platform returns launchpad-wide metrics for the range.
func (s *AnalyticsService) Platform(ctx context.Context, r DateRange) (*PlatformAnalytics, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	var out PlatformAnalytics
	if err := s.client.call(ctx, request{method: http.MethodGet, path: "analytics/platform", params: r}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Project returns the metrics of one project for the range.
func (s *AnalyticsService) Project(ctx context.Context, projectID string, r DateRange) (*ProjectAnalytics, error) {
	seg, err := pathSegment("project id", projectID)
	if err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	var out ProjectAnalytics
	err = s.client.call(ctx, request{
		method: http.MethodGet,
		path:   "analytics/projects/" + seg,
		params: r,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Investor returns the portfolio metrics of an account.
func (s *AnalyticsService) Investor(ctx context.Context, account string) (*InvestorAnalytics, error) {
	seg, err := pathSegment("investor account", account)
	if err != nil {
		return nil, err
	}

	var out InvestorAnalytics
	err = s.client.call(ctx, request{
		method: http.MethodGet,
		path:   "analytics/investors/" + seg,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MarketTrends returns activity trends. An empty period uses the server default.
func (s *AnalyticsService) MarketTrends(ctx context.Context, period TrendingPeriod) (*MarketTrends, error) {
	params := struct {
		Period TrendingPeriod `url:"period,omitempty"`
	}{Period: period}

	var out MarketTrends
	if err := s.client.call(ctx, request{method: http.MethodGet, path: "analytics/trends", params: params}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export requests a dataset export. The returned Export may still be pending.
func (s *AnalyticsService) Export(ctx context.Context, req ExportRequest) (*Export, error) {
	if req.DataType == "" {
		return nil, errors.New("export data type is required")
	}
	if err := req.Range.Validate(); err != nil {
		return nil, err
	}
	if req.Format == "" {
		req.Format = ExportCSV
	}

	var out Export
	if err := s.client.call(ctx, request{method: http.MethodPost, path: "analytics/export", body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
