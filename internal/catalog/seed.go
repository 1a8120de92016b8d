package catalog

import (
	"context"
	"time"
)

// DefaultScenarios are inserted by SeedScenarios into an empty catalog.
var DefaultScenarios = []ScenarioInput{
	{
		Title:       "First-Time Home Buyer Consultation",
		Description: "Guide a first-time home buyer through the initial consultation process, explaining key concepts and addressing common concerns.",
		Difficulty:  DifficultyBeginner,
		Category:    "Buyer Consultation",
		AgentID:     "sarah_johnson",
		AgentName:   "Sarah Johnson",
		Objectives: []string{
			"Explain the home buying process step by step",
			"Discuss mortgage pre-approval and its importance",
			"Cover down payment options and requirements",
			"Address common first-time buyer concerns",
			"Explain the role of a buyer's agent",
		},
	},
	{
		Title:       "Luxury Property Presentation",
		Description: "Present a high-end luxury property to potential buyers, highlighting unique features and demonstrating market knowledge.",
		Difficulty:  DifficultyAdvanced,
		Category:    "Property Presentation",
		AgentID:     "michael_chen",
		AgentName:   "Michael Chen",
		Objectives: []string{
			"Highlight unique architectural features",
			"Discuss premium amenities and smart home technology",
			"Present neighborhood and lifestyle benefits",
			"Address security and privacy features",
			"Explain property investment potential",
		},
	},
	{
		Title:       "Investment Property Analysis",
		Description: "Help an investor evaluate a potential rental property, covering ROI calculations and market analysis.",
		Difficulty:  DifficultyIntermediate,
		Category:    "Investment Analysis",
		AgentID:     "emma_wilson",
		AgentName:   "Emma Wilson",
		Objectives: []string{
			"Calculate potential rental income",
			"Analyze operating expenses and maintenance costs",
			"Discuss market trends and appreciation potential",
			"Evaluate neighborhood development plans",
			"Review property management considerations",
		},
	},
	{
		Title:       "Property Listing Presentation",
		Description: "Present a comprehensive listing presentation to potential sellers, covering pricing strategy and marketing plan.",
		Difficulty:  DifficultyIntermediate,
		Category:    "Seller Consultation",
		AgentID:     "david_martinez",
		AgentName:   "David Martinez",
		Objectives: []string{
			"Present comparative market analysis",
			"Explain pricing strategy",
			"Outline marketing plan and timeline",
			"Discuss staging recommendations",
			"Review seller's disclosure requirements",
		},
	},
	{
		Title:       "Negotiation Strategy Session",
		Description: "Practice handling complex negotiations, including multiple offers and contingency discussions.",
		Difficulty:  DifficultyAdvanced,
		Category:    "Negotiation",
		AgentID:     "lisa_thompson",
		AgentName:   "Lisa Thompson",
		Objectives: []string{
			"Handle multiple offer scenarios",
			"Navigate inspection contingencies",
			"Address appraisal concerns",
			"Manage seller expectations",
			"Negotiate repair requests",
		},
	},
}

// SeedScenarios inserts DefaultScenarios when no scenario exists yet and
// returns the number created. Creation times are staggered by a millisecond
// so the listing keeps the seed order.
func (s *Service) SeedScenarios(ctx context.Context) (int, error) {
	n, err := s.repo.CountScenarios(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	base := s.clock().UTC()
	for i, in := range DefaultScenarios {
		if _, err := s.createScenario(ctx, in, base.Add(time.Duration(i)*time.Millisecond)); err != nil {
			return i, err
		}
	}
	return len(DefaultScenarios), nil
}
