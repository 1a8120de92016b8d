package analysis

// Response is the derived analysis stored on a conversation.
type Response struct {
	OverallScore    float64         `json:"overallScore"`
	OverallFeedback string          `json:"overallFeedback"`
	KeyQuotes       []string        `json:"keyQuotes"`
	Performance     Performance     `json:"performance"`
	Recommendations Recommendations `json:"recommendations"`
}

type Performance struct {
	Neural     Category `json:"neural"`
	Cognitive  Category `json:"cognitive"`
	Behavioral Category `json:"behavioral"`
}

// Category is one framework area with its sub-skill scores.
type Category struct {
	OverallScore         float64            `json:"overallScore"`
	Highlights           string             `json:"highlights"`
	ConstructiveFeedback string             `json:"constructiveFeedback"`
	Overview             string             `json:"overview"`
	SubSkills            map[string]float64 `json:"subskills"`
}

type Recommendations struct {
	Priority   []string `json:"priority"`
	Techniques []string `json:"techniques"`
	Practice   []string `json:"practice"`
}

// modelResponse is the JSON shape the rubric asks the model for.
type modelResponse struct {
	OverallScore    float64 `json:"overall_score"`
	FrameworkScores *struct {
		Neural     map[string]float64 `json:"neural"`
		Cognitive  map[string]float64 `json:"cognitive"`
		Behavioral map[string]float64 `json:"behavioral"`
	} `json:"framework_scores"`
	DetailedFeedback *struct {
		Neural     *feedback `json:"neural"`
		Cognitive  *feedback `json:"cognitive"`
		Behavioral *feedback `json:"behavioral"`
	} `json:"detailed_feedback"`
	KeyQuotes               []string `json:"key_quotes"`
	RecommendationsNextCall []string `json:"recommendations_next_call"`
	OverallSummary          string   `json:"overall_summary"`
}

type feedback struct {
	Highlight    string `json:"highlight"`
	Constructive string `json:"constructive"`
	Overview     string `json:"overview"`
}
