package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/vkazarin/mutualbot/internal/membership"
)

// LinkMetaService resolves a display title for a task target from its public
// t.me preview page. Used at task creation when no title is supplied.
type LinkMetaService struct {
	httpClient *http.Client
}

func NewLinkMetaService() *LinkMetaService {
	return &LinkMetaService{
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *LinkMetaService) ResolveTitle(ctx context.Context, target string) (string, error) {
	username := membership.NormalizeTarget(target)
	if username == "" {
		return "", fmt.Errorf("no public username in %q", target)
	}
	name := strings.TrimPrefix(username, "@")

	req, err := http.NewRequestWithContext(ctx, "GET", "https://t.me/"+name, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch preview: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("preview status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse preview: %w", err)
	}

	if title := strings.TrimSpace(doc.Find("div.tgme_page_title span").First().Text()); title != "" {
		return title, nil
	}
	if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title), nil
	}
	return "", fmt.Errorf("no title on preview page for %s", username)
}
