// Package enrich discovers contact emails on business homepages.
package enrich

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/miekg/dns"
	"go.uber.org/zap"
)

const maxResponseBytes = 2 << 20 // cap pathological homepages

var emailRegex = regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)

// denylist kills matches that are email-shaped but never a real contact:
// static asset names and placeholder/monitoring domains.
var denylist = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".css", ".js",
	"example.com", "@example",
	"sentry.io", "sentry-next.wixpress.com",
	"noreply", "no-reply",
	"youremail", "sampleemail",
}

// Enricher fetches a business homepage once and scans it for an email
// address. All failures are absorbed: the caller gets "" and moves on.
type Enricher struct {
	client    *http.Client
	userAgent string
	verifyMX  bool
	log       *zap.SugaredLogger
}

func New(timeout time.Duration, userAgent string, verifyMX bool, log *zap.SugaredLogger) *Enricher {
	return &Enricher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		verifyMX:  verifyMX,
		log:       log,
	}
}

// Enrich fetches the website and returns the first acceptable email found,
// or "" when none is. Only the homepage is consulted; links are not
// followed.
func (e *Enricher) Enrich(website string) string {
	target := ensureScheme(strings.TrimSpace(website))
	if target == "" {
		return ""
	}

	body, err := e.fetch(target)
	if err != nil {
		e.log.Debugf("  enrichment skipped for %s: %v", website, err)
		return ""
	}

	if email := e.firstEmail(body); email != "" {
		return email
	}
	return ""
}

func (e *Enricher) fetch(target string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%s responded with status %d", target, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// firstEmail prefers mailto anchors over raw-text matches: a mailto link is
// an explicit contact address, while text matches can be anything.
func (e *Enricher) firstEmail(html string) string {
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html))); err == nil {
		if email := mailtoEmail(doc); email != "" && e.acceptable(email) {
			return email
		}
	}

	for _, match := range emailRegex.FindAllString(html, -1) {
		email := strings.ToLower(strings.TrimSpace(match))
		if e.acceptable(email) {
			return email
		}
	}
	return ""
}

func (e *Enricher) acceptable(email string) bool {
	lower := strings.ToLower(email)
	for _, bad := range denylist {
		if strings.Contains(lower, bad) {
			return false
		}
	}
	if e.verifyMX && !hasMXRecords(lower) {
		return false
	}
	return true
}

func mailtoEmail(doc *goquery.Document) string {
	email := ""
	doc.Find(`a[href]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if !strings.HasPrefix(strings.ToLower(href), "mailto:") {
			return true
		}
		addr := strings.TrimPrefix(href, "mailto:")
		if idx := strings.Index(addr, "?"); idx != -1 {
			addr = addr[:idx]
		}
		if decoded, err := url.QueryUnescape(addr); err == nil {
			addr = decoded
		}
		if match := emailRegex.FindString(addr); match != "" {
			email = strings.ToLower(match)
			return false
		}
		return true
	})
	return email
}

func ensureScheme(raw string) string {
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "http") {
		return raw
	}
	return "https://" + strings.TrimLeft(raw, "/")
}

// hasMXRecords checks that the email's domain can actually receive mail.
func hasMXRecords(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[1] == "" {
		return false
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(parts[1]), dns.TypeMX)
	msg.RecursionDesired = true

	client := new(dns.Client)
	for _, server := range []string{"8.8.8.8:53", "1.1.1.1:53"} {
		if resp, _, err := client.Exchange(msg, server); err == nil {
			if resp != nil && resp.Rcode == dns.RcodeSuccess && len(resp.Answer) > 0 {
				return true
			}
		}
	}
	return false
}
