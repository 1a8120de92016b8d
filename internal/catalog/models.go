package catalog

import "time"

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "Beginner"
	DifficultyIntermediate Difficulty = "Intermediate"
	DifficultyAdvanced     Difficulty = "Advanced"
)

func (d Difficulty) valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// Scenario is a practice brief shown on the scenarios page.
type Scenario struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Difficulty  Difficulty `json:"difficulty" db:"difficulty"`
	Category    string     `json:"category" db:"category"`
	AgentID     string     `json:"agentId" db:"agent_id"`
	AgentName   string     `json:"agentName" db:"agent_name"`
	Objectives  []string   `json:"objectives" db:"objectives"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

type PropertyInfo struct {
	Address string   `json:"address"`
	Details []string `json:"details"`
}

// Comp is a comparable sale the seller persona can cite.
type Comp struct {
	Address   string `json:"address"`
	SoldDate  string `json:"soldDate"`
	Price     string `json:"price"`
	Condition string `json:"condition"`
	Updates   string `json:"updates"`
	Notes     string `json:"notes"`
}

// Seller is an AI persona backed by a voice platform agent.
// Placeholder sellers are listed but cannot be called.
type Seller struct {
	ID                string       `json:"id" db:"id"`
	Name              string       `json:"name" db:"name"`
	Description       string       `json:"description" db:"description"`
	ExternalAgentID   string       `json:"elevenLabsId" db:"external_agent_id"`
	ImageURL          string       `json:"imageUrl" db:"image_url"`
	ProfilePictureURL string       `json:"profilePictureUrl" db:"profile_picture_url"`
	PropertyInfo      PropertyInfo `json:"propertyInfo" db:"property_info"`
	IsPlaceholder     bool         `json:"isPlaceholder" db:"is_placeholder"`
	Comps             []Comp       `json:"comps" db:"comps"`
	CreatedAt         time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time    `json:"updatedAt" db:"updated_at"`
}

// Callable reports whether a session may be started with this seller.
func (s Seller) Callable() bool {
	return !s.IsPlaceholder && s.ExternalAgentID != ""
}
