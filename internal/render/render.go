// Package render exports generated blogs as Markdown, HTML or PDF.
package render

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/jung-kurt/gofpdf"
	"gopkg.in/yaml.v3"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
)

// Format is an export format.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
)

// ParseFormat accepts md, markdown, html and pdf. Empty selects Markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", core.InvalidInput(fmt.Sprintf("unsupported export format %q (expected md, html or pdf)", s), nil)
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Render exports result in the given format.
func Render(result core.PipelineResult, format Format) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return []byte(Markdown(result)), nil
	case FormatHTML:
		return HTML(result), nil
	case FormatPDF:
		return PDF(result)
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

type frontMatter struct {
	Title       string    `yaml:"title"`
	Description string    `yaml:"description,omitempty"`
	Tags        []string  `yaml:"tags,omitempty"`
	Source      string    `yaml:"source,omitempty"`
	Date        time.Time `yaml:"date,omitempty"`
	WordCount   int       `yaml:"word_count,omitempty"`
	SEOScore    int       `yaml:"seo_score,omitempty"`
}

// Markdown renders the blog with a YAML front matter block.
func Markdown(result core.PipelineResult) string {
	blog := result.Blog
	var sb strings.Builder

	fm, err := yaml.Marshal(frontMatter{
		Title:       blog.Title,
		Description: blog.MetaDescription,
		Tags:        blog.Tags,
		Source:      result.SourceURL,
		Date:        result.GeneratedAt,
		WordCount:   result.WordCount,
		SEOScore:    result.SEO.Score,
	})
	if err == nil {
		sb.WriteString("---\n")
		sb.Write(fm)
		sb.WriteString("---\n\n")
	}

	sb.WriteString(body(result))
	return sb.String()
}

// body renders the blog itself without front matter.
func body(result core.PipelineResult) string {
	blog := result.Blog
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", blog.Title))

	if img := blog.FeaturedImage; img != nil {
		sb.WriteString(fmt.Sprintf("![%s](%s)\n\n", img.AltText, img.URL))
		if img.Photographer != "" {
			sb.WriteString(fmt.Sprintf("*Photo by %s*\n\n", img.Photographer))
		}
	}

	if blog.Introduction != "" {
		sb.WriteString(blog.Introduction + "\n\n")
	}
	for _, section := range blog.Sections {
		sb.WriteString(fmt.Sprintf("## %s\n\n", section.Heading))
		sb.WriteString(section.Content + "\n\n")
	}
	if blog.Conclusion != "" {
		sb.WriteString("## Conclusion\n\n")
		sb.WriteString(blog.Conclusion + "\n\n")
	}
	if blog.CTA != "" {
		sb.WriteString(fmt.Sprintf("**%s**\n\n", blog.CTA))
	}
	if len(blog.Tags) > 0 {
		tags := make([]string, len(blog.Tags))
		for i, t := range blog.Tags {
			tags[i] = "`" + t + "`"
		}
		sb.WriteString("Tags: " + strings.Join(tags, " ") + "\n\n")
	}
	if result.SourceURL != "" {
		sb.WriteString("---\n\n")
		sb.WriteString(fmt.Sprintf("*Based on [%s](%s)*\n", result.SourceURL, result.SourceURL))
	}
	return sb.String()
}

// HTML renders a standalone HTML page.
func HTML(result core.PipelineResult) []byte {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	})
	content := markdown.ToHTML([]byte(body(result)), parser.NewWithExtensions(extensions), renderer)

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	buf.WriteString(fmt.Sprintf("<title>%s</title>\n", html.EscapeString(result.Blog.Title)))
	if result.Blog.MetaDescription != "" {
		buf.WriteString(fmt.Sprintf("<meta name=\"description\" content=\"%s\">\n", html.EscapeString(result.Blog.MetaDescription)))
	}
	if len(result.Blog.Tags) > 0 {
		buf.WriteString(fmt.Sprintf("<meta name=\"keywords\" content=\"%s\">\n", html.EscapeString(strings.Join(result.Blog.Tags, ", "))))
	}
	buf.WriteString("</head>\n<body>\n<article>\n")
	buf.Write(content)
	buf.WriteString("</article>\n</body>\n</html>\n")
	return buf.Bytes()
}

// PDF renders the blog as an A4 document using the core fonts.
func PDF(result core.PipelineResult) ([]byte, error) {
	blog := result.Blog
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(blog.Title, true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 8, tr(blog.Title), "", "L", false)
	pdf.Ln(2)

	if result.SourceURL != "" {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(100, 100, 100)
		pdf.MultiCell(0, 5, tr("Source: "+result.SourceURL), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(4)

	paragraph := func(text string) {
		if text == "" {
			return
		}
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 5.5, tr(cleanInlineMarkdown(text)), "", "L", false)
		pdf.Ln(3)
	}
	heading := func(text string) {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "B", 14)
		pdf.MultiCell(0, 7, tr(text), "", "L", false)
		pdf.Ln(1)
	}

	paragraph(blog.Introduction)
	for _, section := range blog.Sections {
		heading(section.Heading)
		for _, p := range strings.Split(section.Content, "\n\n") {
			paragraph(strings.TrimSpace(p))
		}
	}
	if blog.Conclusion != "" {
		heading("Conclusion")
		paragraph(blog.Conclusion)
	}
	if blog.CTA != "" {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.MultiCell(0, 5.5, tr(blog.CTA), "", "L", false)
		pdf.Ln(3)
	}
	if len(blog.Tags) > 0 {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, tr("Tags: "+strings.Join(blog.Tags, ", ")), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	inlineCode  = regexp.MustCompile("`([^`]+)`")
	inlineLink  = regexp.MustCompile(`\[([^\]]*)\]\([^)]+\)`)
	nonSlugChar = regexp.MustCompile(`[^a-z0-9]+`)
)

// cleanInlineMarkdown strips inline Markdown formatting for PDF output.
func cleanInlineMarkdown(text string) string {
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	text = inlineCode.ReplaceAllString(text, "$1")
	text = inlineLink.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// Slug turns a title into a file-name friendly string.
func Slug(title string) string {
	slug := strings.Trim(nonSlugChar.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(slug) > 60 {
		slug = strings.TrimRight(slug[:60], "-")
	}
	if slug == "" {
		return "blog"
	}
	return slug
}

// Filename returns the default export file name for result.
func Filename(result core.PipelineResult, format Format) string {
	return Slug(result.Blog.Title) + format.Extension()
}

// WriteToFile writes content to outputDir/filename, creating the directory.
func WriteToFile(content []byte, outputDir, filename string) (string, error) {
	if outputDir == "" {
		outputDir = "blogs"
	}

	err := os.MkdirAll(outputDir, 0755)
	if err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	filePath := filepath.Join(outputDir, filename)

	err = os.WriteFile(filePath, content, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to write blog file %s: %w", filePath, err)
	}

	return filePath, nil
}
