package generate

import (
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
)

// BlogSchema returns the Gemini response_schema for generated blogs.
func BlogSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title": {
				Type:        genai.TypeString,
				Description: "Engaging blog title, under 70 characters",
			},
			"meta_description": {
				Type:        genai.TypeString,
				Description: "SEO meta description of 120-160 characters",
			},
			"introduction": {
				Type:        genai.TypeString,
				Description: "Opening paragraphs that hook the reader",
			},
			"sections": {
				Type:        genai.TypeArray,
				Description: "Ordered body sections, at least one",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"heading": {Type: genai.TypeString},
						"content": {Type: genai.TypeString},
					},
					Required: []string{"heading", "content"},
				},
			},
			"conclusion": {
				Type:        genai.TypeString,
				Description: "Closing paragraph summarizing the post",
			},
			"cta": {
				Type:        genai.TypeString,
				Description: "One sentence call to action",
			},
			"tags": {
				Type:        genai.TypeArray,
				Description: "5-10 short lowercase tags",
				Items:       &genai.Schema{Type: genai.TypeString},
			},
		},
		Required: []string{"title", "meta_description", "introduction", "sections", "conclusion", "cta", "tags"},
	}
}

// SchemaError describes why a model response does not match the blog shape.
type SchemaError struct {
	Field   string
	Problem string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid blog response: %s", e.Problem)
	}
	return fmt.Sprintf("invalid blog response: field %q %s", e.Field, e.Problem)
}

// Parse validates a raw model response against the blog shape. Every key
// must be present. Title, introduction, conclusion and each section's heading
// and content must be non-empty; meta_description, cta and tags may be empty
// because later stages refine them. Errors are always *SchemaError.
func Parse(raw string) (core.GeneratedBlog, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &fields); err != nil {
		return core.GeneratedBlog{}, &SchemaError{Problem: fmt.Sprintf("not a JSON object: %v", err)}
	}

	var blog core.GeneratedBlog
	var err error

	if blog.Title, err = stringField(fields, "title", true); err != nil {
		return core.GeneratedBlog{}, err
	}
	if blog.MetaDescription, err = stringField(fields, "meta_description", false); err != nil {
		return core.GeneratedBlog{}, err
	}
	if blog.Introduction, err = stringField(fields, "introduction", true); err != nil {
		return core.GeneratedBlog{}, err
	}
	if blog.Sections, err = sectionsField(fields); err != nil {
		return core.GeneratedBlog{}, err
	}
	if blog.Conclusion, err = stringField(fields, "conclusion", true); err != nil {
		return core.GeneratedBlog{}, err
	}
	if blog.CTA, err = stringField(fields, "cta", false); err != nil {
		return core.GeneratedBlog{}, err
	}
	if blog.Tags, err = tagsField(fields); err != nil {
		return core.GeneratedBlog{}, err
	}
	return blog, nil
}

func stringField(fields map[string]json.RawMessage, name string, nonEmpty bool) (string, error) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return "", &SchemaError{Field: name, Problem: "is missing"}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &SchemaError{Field: name, Problem: "must be a string"}
	}
	s = strings.TrimSpace(s)
	if nonEmpty && s == "" {
		return "", &SchemaError{Field: name, Problem: "is empty"}
	}
	return s, nil
}

func sectionsField(fields map[string]json.RawMessage) ([]core.BlogSection, error) {
	raw, ok := fields["sections"]
	if !ok || isNull(raw) {
		return nil, &SchemaError{Field: "sections", Problem: "is missing"}
	}
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &SchemaError{Field: "sections", Problem: "must be an array of objects"}
	}
	if len(items) == 0 {
		return nil, &SchemaError{Field: "sections", Problem: "must contain at least one section"}
	}

	sections := make([]core.BlogSection, 0, len(items))
	for i, item := range items {
		heading, err := stringField(item, "heading", true)
		if err != nil {
			return nil, &SchemaError{Field: fmt.Sprintf("sections[%d].heading", i), Problem: err.(*SchemaError).Problem}
		}
		content, err := stringField(item, "content", true)
		if err != nil {
			return nil, &SchemaError{Field: fmt.Sprintf("sections[%d].content", i), Problem: err.(*SchemaError).Problem}
		}
		sections = append(sections, core.BlogSection{Heading: heading, Content: content})
	}
	return sections, nil
}

func tagsField(fields map[string]json.RawMessage) ([]string, error) {
	raw, ok := fields["tags"]
	if !ok || isNull(raw) {
		return nil, &SchemaError{Field: "tags", Problem: "is missing"}
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, &SchemaError{Field: "tags", Problem: "must be an array of strings"}
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// stripCodeFence removes a ```json fence some models wrap around JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
