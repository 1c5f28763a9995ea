package scraper

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Assadbaloch/Gmaps-scraper/config"
	"github.com/Assadbaloch/Gmaps-scraper/models"
)

// Extractor turns one rendered feed item into a candidate record. It never
// fails loudly: a malformed item yields (nil, false) and the harvest moves
// on.
type Extractor interface {
	Extract(ctx context.Context, item Item) (*models.Candidate, bool)
}

var (
	closureRegex  = regexp.MustCompile(`(?i)\b(permanently|temporarily)\s+closed\b`)
	nonDigitRegex = regexp.MustCompile(`\D`)
	ratingRegex   = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
)

// DetailExtractor parses the card payload and best-effort augments it with
// contact fields from the place detail page, opened in its own tab so the
// feed tab's render state is left alone.
type DetailExtractor struct {
	browser context.Context // tab context used as parent for detail tabs
	cfg     config.Config
	log     *zap.SugaredLogger
}

func NewDetailExtractor(browser context.Context, cfg config.Config, log *zap.SugaredLogger) *DetailExtractor {
	return &DetailExtractor{browser: browser, cfg: cfg, log: log}
}

func (e *DetailExtractor) Extract(ctx context.Context, item Item) (*models.Candidate, bool) {
	cand, ok := candidateFromCard(item)
	if !ok {
		return nil, false
	}

	if err := e.fillDetail(ctx, item.ID, cand); err != nil {
		// Card-level fields are still a usable record.
		e.log.Debugf("  detail fetch failed for %q: %v", cand.BusinessName, err)
	}
	return cand, true
}

// candidateFromCard lifts everything derivable from the card itself. An item
// without a name is not a record.
func candidateFromCard(item Item) (*models.Candidate, bool) {
	name := strings.TrimSpace(item.Name)
	if name == "" {
		return nil, false
	}

	return &models.Candidate{
		BusinessName: name,
		Category:     strings.TrimSpace(item.Category),
		Address:      strings.TrimSpace(item.Address),
		Rating:       parseRating(item.Rating),
		ReviewsCount: parseReviews(item.Reviews),
		PriceLevel:   strings.TrimSpace(item.Price),
		Closed:       closureRegex.MatchString(item.Text),
	}, true
}

type detailPayload struct {
	Website  string `json:"website"`
	Phone    string `json:"phone"`
	PlusCode string `json:"plusCode"`
	Address  string `json:"address"`
	Closed   bool   `json:"closed"`
}

func (e *DetailExtractor) fillDetail(ctx context.Context, placeURL string, cand *models.Candidate) error {
	if strings.TrimSpace(placeURL) == "" {
		return nil
	}

	tabCtx, cancelTab := chromedp.NewContext(e.browser)
	defer cancelTab()

	detailCtx, cancel := context.WithTimeout(tabCtx, e.cfg.DetailTimeout)
	defer cancel()

	// The harvest-level context still bounds the whole item.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var rawJSON string
	if err := chromedp.Run(detailCtx,
		chromedp.Navigate(placeURL),
		chromedp.WaitVisible(DetailReadySelector, chromedp.ByQuery),
		chromedp.Sleep(e.cfg.RandomDelay()),
		chromedp.Evaluate(detailScript, &rawJSON),
	); err != nil {
		return err
	}

	var detail detailPayload
	if err := json.Unmarshal([]byte(rawJSON), &detail); err != nil {
		return err
	}
	applyDetail(cand, detail)
	return nil
}

// applyDetail merges detail-page fields into the candidate, preferring the
// richer detail values where both exist.
func applyDetail(cand *models.Candidate, detail detailPayload) {
	if w := CleanWebsiteURL(detail.Website); w != "" {
		cand.Website = w
	}
	if p := normalizePhone(detail.Phone); p != "" {
		cand.Phone = p
	}
	if detail.PlusCode != "" {
		cand.PlusCode = strings.TrimSpace(detail.PlusCode)
	}
	if a := strings.TrimSpace(detail.Address); a != "" {
		cand.Address = a
	}
	if detail.Closed {
		cand.Closed = true
	}
}

// CleanWebsiteURL unwraps Google redirect links and strips tracking noise.
func CleanWebsiteURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "https://www.google.com/url?") {
		if parsed, err := url.Parse(raw); err == nil {
			if target := parsed.Query().Get("q"); target != "" {
				raw = target
			}
		}
	}
	if idx := strings.IndexAny(raw, "?#"); idx != -1 {
		raw = raw[:idx]
	}
	return raw
}

func normalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(raw), "tel:") {
		raw = raw[4:]
	}
	return strings.TrimSpace(raw)
}

func parseRating(value string) float64 {
	num := ratingRegex.FindString(strings.TrimSpace(value))
	if num == "" {
		return 0
	}
	r, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", "."), 64)
	if err != nil {
		return 0
	}
	return r
}

func parseReviews(value string) int {
	cleaned := nonDigitRegex.ReplaceAllString(value, "")
	if cleaned == "" {
		return 0
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0
	}
	return n
}
