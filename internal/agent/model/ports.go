package model

import (
	"context"
	"errors"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrConversationNotFound is returned by a StateRepository when no state is stored.
var ErrConversationNotFound = errors.New("conversation not found")

// HousingProfile is the completed housing intake form.
type HousingProfile struct {
	Tier          string
	Income        int64
	HouseholdSize int64
	Homeless      bool
	Householder   bool
	Region        string
	Assets        int64
	CarValue      int64
}

// HousingType is one eligible rental housing programme.
type HousingType struct {
	HouseID    string `json:"house_id" db:"house_id"`
	Name       string `json:"house_name" db:"house_name"`
	SupplyType string `json:"supply_type" db:"supply_type"`
}

// Notice is one open recruitment notice; ID scopes retrieval.
type Notice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Passage is one retrieved chunk of a notice document.
type Passage struct {
	Text     string `json:"text" db:"content"`
	Page     int    `json:"page" db:"page"`
	NoticeID string `json:"notice_id" db:"notice_id"`
}

// EligibilityFinder filters housing programmes by a completed profile.
type EligibilityFinder interface {
	FindEligible(ctx context.Context, profile HousingProfile) ([]HousingType, error)
}

// RegionResolver maps a free-text region name to a region code; "" means unknown.
type RegionResolver interface {
	ResolveRegionCode(ctx context.Context, name string) (string, error)
}

// NoticeFinder lists open notices for the given housing ids and region.
type NoticeFinder interface {
	FindOpenNotices(ctx context.Context, houseIDs []string, regionCode string) ([]Notice, error)
}

// LoanPricer renders a comparison table for an amount and term; "" means no product.
type LoanPricer interface {
	ComparisonTable(ctx context.Context, amount int64, years int) (string, error)
}

// PassageRetriever runs a similarity search restricted to one notice.
type PassageRetriever interface {
	Retrieve(ctx context.Context, query, noticeID string, topK int) ([]Passage, error)
}

// Generator is the language generation service.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

// StateRepository persists conversation state between turns on behalf of the caller.
type StateRepository interface {
	Load(ctx context.Context, conversationID string) (*ConversationState, error)
	Save(ctx context.Context, conversationID string, state ConversationState) error
	Clear(ctx context.Context, conversationID string) error
}
