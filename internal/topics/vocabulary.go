package topics

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultGenericTopic is used when no vocabulary label fits well enough.
const DefaultGenericTopic = "General"

// Topic is one label of the topic vocabulary.
type Topic struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords,omitempty"`
	Priority    int      `yaml:"priority,omitempty"` // Lower number wins ties
}

// Vocabulary is the closed set of labels the analyzer chooses from.
type Vocabulary struct {
	Generic string  `yaml:"generic"`
	Topics  []Topic `yaml:"topics"`
}

// Text returns the phrase embedded to represent the topic.
func (t Topic) Text() string {
	var b strings.Builder
	b.WriteString(t.Name)
	if t.Description != "" {
		b.WriteString(": ")
		b.WriteString(t.Description)
	}
	if len(t.Keywords) > 0 {
		b.WriteString(". Related terms: ")
		b.WriteString(strings.Join(t.Keywords, ", "))
	}
	return b.String()
}

// DefaultVocabulary returns the built-in topic set
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Generic: DefaultGenericTopic,
		Topics: []Topic{
			{
				Name:        "Software Development",
				Description: "Programming languages, frameworks, tooling, and engineering practices",
				Keywords:    []string{"code", "programming", "api", "testing", "deployment"},
				Priority:    1,
			},
			{
				Name:        "Artificial Intelligence",
				Description: "Machine learning, language models, data science, and AI products",
				Keywords:    []string{"machine learning", "neural network", "llm", "model training"},
				Priority:    2,
			},
			{
				Name:        "Technology",
				Description: "Consumer technology, gadgets, hardware, and the tech industry",
				Keywords:    []string{"devices", "smartphone", "cloud", "startup"},
				Priority:    3,
			},
			{
				Name:        "Business",
				Description: "Companies, strategy, management, entrepreneurship, and the economy",
				Keywords:    []string{"strategy", "revenue", "leadership", "market"},
				Priority:    4,
			},
			{
				Name:        "Finance",
				Description: "Personal finance, investing, markets, banking, and cryptocurrency",
				Keywords:    []string{"investing", "stocks", "budget", "interest rates"},
				Priority:    5,
			},
			{
				Name:        "Marketing",
				Description: "Digital marketing, SEO, content strategy, branding, and advertising",
				Keywords:    []string{"seo", "audience", "campaign", "brand"},
				Priority:    6,
			},
			{
				Name:        "Health",
				Description: "Medicine, fitness, nutrition, and mental wellbeing",
				Keywords:    []string{"exercise", "diet", "wellness", "disease"},
				Priority:    7,
			},
			{
				Name:        "Science",
				Description: "Research findings, physics, biology, chemistry, and space",
				Keywords:    []string{"research", "experiment", "study", "discovery"},
				Priority:    8,
			},
			{
				Name:        "Education",
				Description: "Learning, teaching, schools, courses, and career development",
				Keywords:    []string{"students", "learning", "course", "skills"},
				Priority:    9,
			},
			{
				Name:        "Environment",
				Description: "Climate, sustainability, energy, and conservation",
				Keywords:    []string{"climate change", "renewable energy", "emissions"},
				Priority:    10,
			},
			{
				Name:        "Politics",
				Description: "Government, policy, elections, and public affairs",
				Keywords:    []string{"election", "policy", "government", "law"},
				Priority:    11,
			},
			{
				Name:        "Lifestyle",
				Description: "Travel, food, home, relationships, and culture",
				Keywords:    []string{"travel", "recipes", "home", "culture"},
				Priority:    12,
			},
			{
				Name:        "Entertainment",
				Description: "Movies, music, games, sports, and celebrities",
				Keywords:    []string{"film", "music", "gaming", "sports"},
				Priority:    13,
			},
		},
	}
}

// LoadVocabulary reads a YAML vocabulary file. An empty path selects the
// built-in vocabulary.
func LoadVocabulary(path string) (Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("failed to read topic vocabulary %s: %w", path, err)
	}

	var vocab Vocabulary
	if err := yaml.Unmarshal(data, &vocab); err != nil {
		return Vocabulary{}, fmt.Errorf("failed to parse topic vocabulary %s: %w", path, err)
	}
	if err := vocab.Validate(); err != nil {
		return Vocabulary{}, fmt.Errorf("invalid topic vocabulary %s: %w", path, err)
	}
	if vocab.Generic == "" {
		vocab.Generic = DefaultGenericTopic
	}
	return vocab, nil
}

// Validate checks that the vocabulary has uniquely named topics.
func (v Vocabulary) Validate() error {
	if len(v.Topics) == 0 {
		return fmt.Errorf("vocabulary has no topics")
	}
	seen := make(map[string]bool)
	for i, t := range v.Topics {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return fmt.Errorf("topic %d has no name", i)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return fmt.Errorf("duplicate topic %q", name)
		}
		seen[key] = true
	}
	return nil
}

// Names returns just the topic names
func (v Vocabulary) Names() []string {
	names := make([]string, len(v.Topics))
	for i, t := range v.Topics {
		names[i] = t.Name
	}
	return names
}
