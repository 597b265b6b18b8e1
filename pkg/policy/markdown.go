package policy

import (
	"context"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/headless-crawler/pkg/render"
	"github.com/Sriram-PR/headless-crawler/pkg/utils"
)

// MarkdownContent is the content value produced by MarkdownExtractor
type MarkdownContent struct {
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

// MarkdownExtractor converts the rendered document to Markdown. A non-empty
// selector narrows the conversion to its first match; a page without a
// match fails with ErrContentSelector.
func MarkdownExtractor(selector string) ExtractContentFunc {
	converter := md.NewConverter("", true, nil)

	return func(ctx context.Context, page render.Page, requestedURL string) (any, error) {
		html, err := page.Content(ctx)
		if err != nil {
			return nil, err
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, fmt.Errorf("%w: parsing HTML from '%s': %w", utils.ErrParsing, requestedURL, err)
		}
		title := strings.TrimSpace(doc.Find("title").First().Text())

		content := doc.Find("body")
		if selector != "" {
			content = doc.Find(selector)
			if content.Length() == 0 {
				return nil, fmt.Errorf("%w: selector '%s' not found on page '%s'", utils.ErrContentSelector, selector, requestedURL)
			}
		}
		content = content.First().Clone()
		cleanupHTML(content)

		fragment, err := goquery.OuterHtml(content)
		if err != nil {
			return nil, fmt.Errorf("%w: serializing content of '%s': %w", utils.ErrParsing, requestedURL, err)
		}
		markdown, err := converter.ConvertString(fragment)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", utils.ErrMarkdownConversion, err)
		}
		return MarkdownContent{Title: title, Markdown: strings.TrimSpace(markdown)}, nil
	}
}

// cleanupHTML drops elements that carry no readable content
func cleanupHTML(content *goquery.Selection) {
	content.Find("script, style, noscript, template").Remove()
	content.Find("a.headerlink, a.permalink").Remove()

	content.Find("a").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		href, _ := s.Attr("href")
		if text == "¶" || text == "#" || (text == "" && strings.HasPrefix(href, "#")) {
			s.Remove()
		}
	})
}
