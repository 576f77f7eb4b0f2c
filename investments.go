package xrplsale

import (
	"context"
	"errors"
	"iter"
	"net/http"

	"github.com/google/uuid"
)

// InvestmentStatus is the settlement state of an investment.
type InvestmentStatus string

const (
	InvestmentStatusPending   InvestmentStatus = "pending"
	InvestmentStatusConfirmed InvestmentStatus = "confirmed"
	InvestmentStatusFailed    InvestmentStatus = "failed"
	InvestmentStatusRefunded  InvestmentStatus = "refunded"
)

// Investment is a purchase of project tokens by an investor account.
type Investment struct {
	ID                string           `json:"id"`
	ProjectID         string           `json:"project_id"`
	InvestorAccount   string           `json:"investor_account"`
	AmountXRP         string           `json:"amount_xrp"`
	TokenAmount       string           `json:"token_amount"`
	Tier              int              `json:"tier"`
	Status            InvestmentStatus `json:"status"`
	TransactionHash   string           `json:"transaction_hash,omitempty"`
	CreatedAt         Time             `json:"created_at"`
	ConfirmedAt       Time             `json:"confirmed_at"`
	ReferralCode      string           `json:"referral_code,omitempty"`
	DestinationTag    *uint32          `json:"destination_tag,omitempty"`
	EstimatedDelivery Time             `json:"estimated_delivery"`
}

// CreateInvestmentRequest is the payload of InvestmentsService.Create.
type CreateInvestmentRequest struct {
	ProjectID       string `json:"project_id"`
	InvestorAccount string `json:"investor_account"`
	AmountXRP       string `json:"amount_xrp"`
	ReferralCode    string `json:"referral_code,omitempty"`
	// TransactionHash references the XRPL payment funding the investment, if already sent.
	TransactionHash string `json:"transaction_hash,omitempty"`
}

// SimulateInvestmentRequest asks what an investment would yield without placing it.
type SimulateInvestmentRequest struct {
	ProjectID string `json:"project_id"`
	AmountXRP string `json:"amount_xrp"`
}

// InvestmentSimulation is the projected outcome of an investment.
type InvestmentSimulation struct {
	ProjectID     string           `json:"project_id"`
	AmountXRP     string           `json:"amount_xrp"`
	TokenAmount   string           `json:"token_amount"`
	AveragePrice  string           `json:"average_price"`
	TierBreakdown []TierAllocation `json:"tier_breakdown,omitempty"`
	Fees          string           `json:"fees,omitempty"`
}

// TierAllocation is the share of a simulated investment filled by one tier.
type TierAllocation struct {
	Tier          int    `json:"tier"`
	TokenAmount   string `json:"token_amount"`
	PricePerToken string `json:"price_per_token"`
	AmountXRP     string `json:"amount_xrp"`
}

// InvestorSummary aggregates the investments of one account.
type InvestorSummary struct {
	InvestorAccount  string `json:"investor_account"`
	TotalInvestedXRP string `json:"total_invested_xrp"`
	ProjectCount     int    `json:"project_count"`
	InvestmentCount  int    `json:"investment_count"`
	FirstInvestment  Time   `json:"first_investment"`
	LastInvestment   Time   `json:"last_investment"`
}

// ListInvestmentsParams filters InvestmentsService.List.
type ListInvestmentsParams struct {
	PageParams
	ProjectID       string           `url:"project_id,omitempty"`
	InvestorAccount string           `url:"investor_account,omitempty"`
	Status          InvestmentStatus `url:"status,omitempty"`
	DateRange
}

// InvestmentsService tracks investments into projects.
type InvestmentsService struct {
	client *Client
}

// List returns one page of investments.
func (s *InvestmentsService) List(ctx context.Context, params ListInvestmentsParams) (*Page[Investment], error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var page Page[Investment]
	if err := s.client.call(ctx, request{method: http.MethodGet, path: "investments", params: params}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// All iterates over every investment matching params.
func (s *InvestmentsService) All(ctx context.Context, params ListInvestmentsParams) iter.Seq2[Investment, error] {
	return iteratePages(ctx, params.PerPage, func(ctx context.Context, p PageParams) (*Page[Investment], error) {
		q := params
		q.PageParams = p
		return s.List(ctx, q)
	})
}

// Get fetches an investment by ID.
func (s *InvestmentsService) Get(ctx context.Context, investmentID string) (*Investment, error) {
	seg, err := pathSegment("investment id", investmentID)
	if err != nil {
		return nil, err
	}

	var inv Investment
	err = s.client.call(ctx, request{
		method: http.MethodGet,
		path:   "investments/" + seg,
	}, &inv)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Create records an investment. Retries carry the same idempotency key.
func (s *InvestmentsService) Create(ctx context.Context, req CreateInvestmentRequest) (*Investment, error) {
	if req.ProjectID == "" || req.InvestorAccount == "" || req.AmountXRP == "" {
		return nil, errors.New("project id, investor account and amount are required")
	}

	var inv Investment
	err := s.client.call(ctx, request{
		method:         http.MethodPost,
		path:           "investments",
		body:           req,
		idempotencyKey: uuid.NewString(),
	}, &inv)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ByProject returns a page of investments into a project.
func (s *InvestmentsService) ByProject(ctx context.Context, projectID string, page PageParams) (*Page[Investment], error) {
	if projectID == "" {
		return nil, errors.New("project id is required")
	}
	return s.List(ctx, ListInvestmentsParams{PageParams: page, ProjectID: projectID})
}

// ByInvestor returns a page of investments made by an account.
func (s *InvestmentsService) ByInvestor(ctx context.Context, account string, page PageParams) (*Page[Investment], error) {
	seg, err := pathSegment("investor account", account)
	if err != nil {
		return nil, err
	}

	var p Page[Investment]
	err = s.client.call(ctx, request{
		method: http.MethodGet,
		path:   "investors/" + seg + "/investments",
		params: page,
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InvestorSummary returns the aggregate position of an account.
func (s *InvestmentsService) InvestorSummary(ctx context.Context, account string) (*InvestorSummary, error) {
	seg, err := pathSegment("investor account", account)
	if err != nil {
		return nil, err
	}

	var sum InvestorSummary
	err = s.client.call(ctx, request{
		method: http.MethodGet,
		path:   "investors/" + seg + "/summary",
	}, &sum)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// Simulate projects the outcome of an investment without placing it.
func (s *InvestmentsService) Simulate(ctx context.Context, req SimulateInvestmentRequest) (*InvestmentSimulation, error) {
	var sim InvestmentSimulation
	err := s.client.call(ctx, request{
		method: http.MethodPost,
		path:   "investments/simulate",
		body:   req,
	}, &sim)
	if err != nil {
		return nil, err
	}
	return &sim, nil
}
