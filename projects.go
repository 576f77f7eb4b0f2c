package xrplsale

import (
	"context"
	"errors"
	"iter"
	"net/http"

	"github.com/google/uuid"
)

// ProjectStatus is the lifecycle state of a token sale.
type ProjectStatus string

const (
	ProjectStatusDraft     ProjectStatus = "draft"
	ProjectStatusUpcoming  ProjectStatus = "upcoming"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusPaused    ProjectStatus = "paused"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

// SortOrder is the direction of a sorted listing.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Project is a token sale listed on the launchpad.
// Token amounts are decimal strings to avoid float rounding.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	TokenSymbol string        `json:"token_symbol"`
	TotalSupply string        `json:"total_supply"`
	Status      ProjectStatus `json:"status"`
	Tiers       []ProjectTier `json:"tiers,omitempty"`
	// SaleStartDate and SaleEndDate bound the sale window.
	SaleStartDate Time `json:"sale_start_date"`
	SaleEndDate   Time `json:"sale_end_date"`
	// TotalRaised is denominated in XRP.
	TotalRaised   string         `json:"total_raised,omitempty"`
	InvestorCount int            `json:"investor_count,omitempty"`
	Website       string         `json:"website,omitempty"`
	Whitepaper    string         `json:"whitepaper,omitempty"`
	SocialLinks   map[string]any `json:"social_links,omitempty"`
	CreatedAt     Time           `json:"created_at"`
	UpdatedAt     Time           `json:"updated_at"`
}

// ProjectTier is one price tier of a sale.
type ProjectTier struct {
	Tier          int    `json:"tier"`
	PricePerToken string `json:"price_per_token"`
	TotalTokens   string `json:"total_tokens"`
	TokensSold    string `json:"tokens_sold,omitempty"`
	MinPurchase   string `json:"min_purchase,omitempty"`
	MaxPurchase   string `json:"max_purchase,omitempty"`
	IsActive      bool   `json:"is_active,omitempty"`
}

// ProjectStats aggregates the progress of a sale.
type ProjectStats struct {
	ProjectID         string  `json:"project_id"`
	TotalRaised       string  `json:"total_raised"`
	TotalInvestors    int     `json:"total_investors"`
	TokensSold        string  `json:"tokens_sold"`
	PercentageSold    float64 `json:"percentage_sold"`
	AverageInvestment string  `json:"average_investment"`
	CurrentTier       int     `json:"current_tier"`
	TimeRemaining     int64   `json:"time_remaining,omitempty"`
}

// CreateProjectRequest is the payload of ProjectsService.Create.
type CreateProjectRequest struct {
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	TokenSymbol   string         `json:"token_symbol"`
	TotalSupply   string         `json:"total_supply"`
	Tiers         []ProjectTier  `json:"tiers"`
	SaleStartDate Time           `json:"sale_start_date"`
	SaleEndDate   Time           `json:"sale_end_date"`
	Website       string         `json:"website,omitempty"`
	Whitepaper    string         `json:"whitepaper,omitempty"`
	SocialLinks   map[string]any `json:"social_links,omitempty"`
}

// UpdateProjectRequest carries the fields to change; nil fields are left as they are.
type UpdateProjectRequest struct {
	Name          *string        `json:"name,omitempty"`
	Description   *string        `json:"description,omitempty"`
	SaleStartDate *Time          `json:"sale_start_date,omitempty"`
	SaleEndDate   *Time          `json:"sale_end_date,omitempty"`
	Website       *string        `json:"website,omitempty"`
	Whitepaper    *string        `json:"whitepaper,omitempty"`
	SocialLinks   map[string]any `json:"social_links,omitempty"`
}

// ListProjectsParams filters ProjectsService.List.
type ListProjectsParams struct {
	PageParams
	Status    ProjectStatus `url:"status,omitempty"`
	SortBy    string        `url:"sort_by,omitempty"`
	SortOrder SortOrder     `url:"sort_order,omitempty"`
}

// SearchProjectsParams filters ProjectsService.Search.
type SearchProjectsParams struct {
	PageParams
	Query  string        `url:"q"`
	Status ProjectStatus `url:"status,omitempty"`
}

// ProjectsService manages token sale projects.
type ProjectsService struct {
	client *Client
}

// List returns one page of projects.
func (s *ProjectsService) List(ctx context.Context, params ListProjectsParams) (*Page[Project], error) {
	var page Page[Project]
	if err := s.client.call(ctx, request{method: http.MethodGet, path: "projects", params: params}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// All iterates over every project matching params, starting at page 1.
func (s *ProjectsService) All(ctx context.Context, params ListProjectsParams) iter.Seq2[Project, error] {
	return iteratePages(ctx, params.PerPage, func(ctx context.Context, p PageParams) (*Page[Project], error) {
		q := params
		q.PageParams = p
		return s.List(ctx, q)
	})
}

// Active returns a page of projects currently selling.
func (s *ProjectsService) Active(ctx context.Context, page PageParams) (*Page[Project], error) {
	return s.List(ctx, ListProjectsParams{PageParams: page, Status: ProjectStatusActive})
}

// Upcoming returns a page of projects whose sale has not started.
func (s *ProjectsService) Upcoming(ctx context.Context, page PageParams) (*Page[Project], error) {
	return s.List(ctx, ListProjectsParams{PageParams: page, Status: ProjectStatusUpcoming})
}

// Completed returns a page of finished projects.
func (s *ProjectsService) Completed(ctx context.Context, page PageParams) (*Page[Project], error) {
	return s.List(ctx, ListProjectsParams{PageParams: page, Status: ProjectStatusCompleted})
}

// Get fetches a project by ID.
func (s *ProjectsService) Get(ctx context.Context, projectID string) (*Project, error) {
	return s.project(ctx, http.MethodGet, projectID, "", nil)
}

// Create registers a new project.
func (s *ProjectsService) Create(ctx context.Context, req CreateProjectRequest) (*Project, error) {
	if req.Name == "" || req.TokenSymbol == "" {
		return nil, errors.New("project name and token symbol are required")
	}

	var p Project
	err := s.client.call(ctx, request{
		method:         http.MethodPost,
		path:           "projects",
		body:           req,
		idempotencyKey: uuid.NewString(),
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update changes the given fields of a project.
func (s *ProjectsService) Update(ctx context.Context, projectID string, req UpdateProjectRequest) (*Project, error) {
	return s.project(ctx, http.MethodPatch, projectID, "", req)
}

// Launch makes a project active.
func (s *ProjectsService) Launch(ctx context.Context, projectID string) (*Project, error) {
	return s.project(ctx, http.MethodPost, projectID, "launch", nil)
}

// Pause suspends an active sale.
func (s *ProjectsService) Pause(ctx context.Context, projectID string) (*Project, error) {
	return s.project(ctx, http.MethodPost, projectID, "pause", nil)
}

// Resume restarts a paused sale.
func (s *ProjectsService) Resume(ctx context.Context, projectID string) (*Project, error) {
	return s.project(ctx, http.MethodPost, projectID, "resume", nil)
}

// Cancel cancels a project.
func (s *ProjectsService) Cancel(ctx context.Context, projectID string) (*Project, error) {
	return s.project(ctx, http.MethodPost, projectID, "cancel", nil)
}

func (s *ProjectsService) project(ctx context.Context, method, projectID, action string, body any) (*Project, error) {
	path, err := projectPath(projectID, action)
	if err != nil {
		return nil, err
	}

	r := request{method: method, path: path, body: body}
	if method == http.MethodPost {
		// Lifecycle actions are not idempotent on their own.
		r.idempotencyKey = uuid.NewString()
	}

	var p Project
	if err := s.client.call(ctx, r, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Stats returns sale statistics for a project.
func (s *ProjectsService) Stats(ctx context.Context, projectID string) (*ProjectStats, error) {
	path, err := projectPath(projectID, "stats")
	if err != nil {
		return nil, err
	}

	var stats ProjectStats
	if err := s.client.call(ctx, request{method: http.MethodGet, path: path}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Investors returns a page of investments made into a project.
func (s *ProjectsService) Investors(ctx context.Context, projectID string, page PageParams) (*Page[Investment], error) {
	path, err := projectPath(projectID, "investors")
	if err != nil {
		return nil, err
	}

	var p Page[Investment]
	if err := s.client.call(ctx, request{method: http.MethodGet, path: path, params: page}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// InvestorsAll iterates over every investment into a project.
func (s *ProjectsService) InvestorsAll(ctx context.Context, projectID string, perPage int) iter.Seq2[Investment, error] {
	return iteratePages(ctx, perPage, func(ctx context.Context, p PageParams) (*Page[Investment], error) {
		return s.Investors(ctx, projectID, p)
	})
}

// Tiers returns the price tiers of a project.
func (s *ProjectsService) Tiers(ctx context.Context, projectID string) ([]ProjectTier, error) {
	path, err := projectPath(projectID, "tiers")
	if err != nil {
		return nil, err
	}

	var tiers []ProjectTier
	if err := s.client.call(ctx, request{method: http.MethodGet, path: path}, &tiers); err != nil {
		return nil, err
	}
	return tiers, nil
}

// UpdateTiers replaces the price tiers of a project.
func (s *ProjectsService) UpdateTiers(ctx context.Context, projectID string, tiers []ProjectTier) ([]ProjectTier, error) {
	path, err := projectPath(projectID, "tiers")
	if err != nil {
		return nil, err
	}

	body := struct {
		Tiers []ProjectTier `json:"tiers"`
	}{Tiers: tiers}

	var updated []ProjectTier
	if err := s.client.call(ctx, request{method: http.MethodPut, path: path, body: body}, &updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Search returns a page of projects matching a free text query.
func (s *ProjectsService) Search(ctx context.Context, params SearchProjectsParams) (*Page[Project], error) {
	if params.Query == "" {
		return nil, errors.New("search query is required")
	}

	var page Page[Project]
	if err := s.client.call(ctx, request{method: http.MethodGet, path: "projects/search", params: params}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Featured returns up to limit featured projects. A zero limit uses the server default.
func (s *ProjectsService) Featured(ctx context.Context, limit int) ([]Project, error) {
	params := struct {
		Limit int `url:"limit,omitempty"`
	}{Limit: limit}

	var page Page[Project]
	if err := s.client.call(ctx, request{method: http.MethodGet, path: "projects/featured", params: params}, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

// TrendingPeriod is the window used to rank trending projects.
type TrendingPeriod string

const (
	Trending24h TrendingPeriod = "24h"
	Trending7d  TrendingPeriod = "7d"
	Trending30d TrendingPeriod = "30d"
)

// Trending returns up to limit projects ranked by recent activity.
func (s *ProjectsService) Trending(ctx context.Context, period TrendingPeriod, limit int) ([]Project, error) {
	params := struct {
		Period TrendingPeriod `url:"period,omitempty"`
		Limit  int            `url:"limit,omitempty"`
	}{Period: period, Limit: limit}

	var page Page[Project]
	if err := s.client.call(ctx, request{method: http.MethodGet, path: "projects/trending", params: params}, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

// projectPath builds projects/{id}[/action].
func projectPath(projectID, action string) (string, error) {
	seg, err := pathSegment("project id", projectID)
	if err != nil {
		return "", err
	}

	path := "projects/" + seg
	if action != "" {
		path += "/" + action
	}
	return path, nil
}
