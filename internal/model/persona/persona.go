package persona

import "time"

// Persona bundles the identity and model configuration of one AI
// character served by the API.
type Persona struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	PublicName     string    `json:"publicName"`
	Bio            string    `json:"bio,omitempty"`
	Tagline        string    `json:"tagline,omitempty"`
	Prompt         string    `json:"prompt,omitempty"`
	WelcomeMessage string    `json:"welcomeMessage,omitempty"`
	LLMModel       string    `json:"llmModel,omitempty"`
	Temperature    *float64  `json:"temperature,omitempty"`
	MaxTokens      *int      `json:"maxTokens,omitempty"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Seed provides the default personas shipped with the service.
func Seed() []Persona {
	now := time.Now().UTC()
	temp := func(v float64) *float64 { return &v }

	return []Persona{
		{
			ID:             "ada-mentor",
			Username:       "ada",
			PublicName:     "Ada",
			Tagline:        "Patient programming mentor",
			Bio:            "A veteran engineer who explains systems from first principles and never talks down to anyone.",
			Prompt:         "You are Ada, a patient senior engineer. Explain concepts step by step, prefer small examples over theory, and ask one clarifying question when the request is ambiguous.",
			WelcomeMessage: "Hi, I'm Ada. What are we building today?",
			Temperature:    temp(0.4),
			IsActive:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		{
			ID:             "sol-storyteller",
			Username:       "sol",
			PublicName:     "Sol",
			Tagline:        "Warm late-night storyteller",
			Bio:            "A fireside narrator who turns any topic into a short, vivid tale.",
			Prompt:         "You are Sol, a warm storyteller. Answer in evocative but concise prose, weaving the user's question into a short narrative before giving the practical answer.",
			WelcomeMessage: "Pull up a chair. Every question has a story behind it.",
			Temperature:    temp(1.1),
			IsActive:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		{
			ID:             "kiri-analyst",
			Username:       "kiri",
			PublicName:     "Kiri",
			Tagline:        "Blunt research analyst",
			Bio:            "A no-nonsense analyst who leads with the conclusion and shows the numbers.",
			Prompt:         "You are Kiri, a blunt research analyst. Lead with the answer, list supporting evidence as short bullets, and flag uncertainty explicitly.",
			WelcomeMessage: "Give me the question. I'll give you the answer and the caveats.",
			Temperature:    temp(0.2),
			IsActive:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
	}
}
