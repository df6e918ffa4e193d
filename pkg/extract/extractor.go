package extract

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/sirupsen/logrus"

	"site-audit/pkg/config"
	"site-audit/pkg/models"
	"site-audit/pkg/parse"
	"site-audit/pkg/utils"
)

// securityHeaders are the response headers checked for presence
var securityHeaders = []string{
	"Strict-Transport-Security",
	"Content-Security-Policy",
	"X-Content-Type-Options",
	"X-Frame-Options",
	"Referrer-Policy",
}

// weakAltValues are alt texts too generic to describe an image
var weakAltValues = map[string]bool{
	"image": true, "img": true, "photo": true, "picture": true,
	"icon": true, "logo": true, "banner": true, "graphic": true,
}

// Extractor turns a fetched HTML document into a normalized PageExtract.
// It is stateless apart from configuration and safe for concurrent use.
type Extractor struct {
	cfg           *config.AuditConfig
	internalHosts map[string]bool
	log           *logrus.Logger
}

// NewExtractor creates an Extractor. internalHosts decides which outlink
// targets count as internal; hostnames are matched case-insensitively.
func NewExtractor(cfg *config.AuditConfig, log *logrus.Logger) *Extractor {
	hosts := make(map[string]bool, len(cfg.AllowedDomains))
	for _, domain := range cfg.AllowedDomains {
		hosts[strings.ToLower(domain)] = true
	}
	return &Extractor{cfg: cfg, internalHosts: hosts, log: log}
}

// Extract parses the response body and builds the PageExtract record for one
// crawled URL. The graph-derived fields (inlink count, top anchors) are left
// zero; the link graph builder fills them later.
func (e *Extractor) Extract(requestURL string, finalURL *url.URL, status int, header http.Header, body []byte, depth int) (*models.PageExtract, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrParsing, "parse HTML for %s: %v", requestURL, err)
	}

	page := &models.PageExtract{
		URL:       requestURL,
		FinalURL:  parse.NormalizeURL(finalURL),
		Status:    status,
		Depth:     depth,
		FetchedAt: time.Now().UTC(),
	}

	page.Title = utils.NormalizeSpace(doc.Find("head title").First().Text())
	page.MetaDescription = utils.NormalizeSpace(metaContent(doc, "description"))
	page.MetaRobots = strings.ToLower(utils.NormalizeSpace(metaContent(doc, "robots")))
	page.XRobotsTag = strings.ToLower(strings.TrimSpace(header.Get("X-Robots-Tag")))
	page.Lang, _ = doc.Find("html").First().Attr("lang")
	page.Lang = strings.TrimSpace(page.Lang)

	if href, ok := doc.Find(`head link[rel="canonical"]`).First().Attr("href"); ok {
		if canonicalURL, err := finalURL.Parse(strings.TrimSpace(href)); err == nil {
			page.Canonical = parse.NormalizeURL(canonicalURL)
		}
	}

	page.Headings = collectHeadings(doc)
	page.JSONLD, page.SchemaTypes = collectJSONLD(doc)
	page.Images = collectImageStats(doc)
	page.Security = e.collectSecurity(doc, finalURL, header)

	page.OutlinksInternal, page.OutlinksExternal, page.UnlabeledLinks = CollectOutlinks(doc, finalURL, e.internalHosts)

	e.extractContent(page, finalURL, body)
	page.WordCount = utils.WordCount(page.MainText)
	if e.cfg.Tokens.Enabled {
		page.TokenCount = CountTokens(page.MainText)
	}

	return page, nil
}

// FailedExtract builds the placeholder record for a URL whose fetch failed.
// status is 0 for network-level failures, or the non-2xx HTTP status.
func FailedExtract(requestURL string, depth, status int, fetchErr error) *models.PageExtract {
	page := &models.PageExtract{
		URL:       requestURL,
		FinalURL:  requestURL,
		Status:    status,
		Depth:     depth,
		FetchedAt: time.Now().UTC(),
	}
	if fetchErr != nil {
		page.FetchErr = fetchErr.Error()
	}
	return page
}

// extractContent fills MainText and ContentMarkdown using readability
// distillation, falling back to the raw body text when distillation fails.
func (e *Extractor) extractContent(page *models.PageExtract, finalURL *url.URL, body []byte) {
	parser := readability.NewParser()
	article, err := parser.Parse(bytes.NewReader(body), finalURL)
	if err != nil {
		e.log.WithField("url", page.URL).Debugf("Readability extraction failed, falling back to body text: %v", err)
		if doc, docErr := goquery.NewDocumentFromReader(bytes.NewReader(body)); docErr == nil {
			stripped := doc.Clone()
			stripped.Find("nav, header, footer, aside, script, style, noscript").Remove()
			page.MainText = utils.NormalizeSpace(stripped.Find("body").Text())
		}
		return
	}

	page.MainText = utils.NormalizeSpace(article.TextContent)

	converter := md.NewConverter("", true, nil)
	markdown, convertErr := converter.ConvertString(article.Content)
	if convertErr != nil {
		e.log.WithField("url", page.URL).Debugf("Markdown conversion failed: %v", convertErr)
		return
	}
	page.ContentMarkdown = strings.TrimSpace(markdown)
}

// collectSecurity derives transport and header security signals
func (e *Extractor) collectSecurity(doc *goquery.Document, finalURL *url.URL, header http.Header) models.SecurityFlags {
	flags := models.SecurityFlags{HTTPS: finalURL.Scheme == "https"}

	for _, name := range securityHeaders {
		if header.Get(name) != "" {
			flags.PresentHeaders = append(flags.PresentHeaders, name)
		} else {
			flags.MissingHeaders = append(flags.MissingHeaders, name)
		}
	}

	if flags.HTTPS {
		flags.MixedContent = collectMixedContent(doc)
	}
	return flags
}

// collectMixedContent finds plain-http resource references on the page
func collectMixedContent(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	record := func(raw string) {
		raw = strings.TrimSpace(raw)
		if strings.HasPrefix(raw, "http://") && !seen[raw] {
			seen[raw] = true
		}
	}

	doc.Find("img[src], script[src], iframe[src], audio[src], video[src], source[src], embed[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		record(src)
	})
	doc.Find(`link[rel="stylesheet"][href]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		record(href)
	})

	if len(seen) == 0 {
		return nil
	}
	mixed := make([]string, 0, len(seen))
	for res := range seen {
		mixed = append(mixed, res)
	}
	sort.Strings(mixed)
	return mixed
}

// collectHeadings returns the h1..h6 outline in document order
func collectHeadings(doc *goquery.Document) []models.Heading {
	var headings []models.Heading
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		name := goquery.NodeName(sel)
		if len(name) != 2 || name[0] != 'h' {
			return
		}
		level := int(name[1] - '0')
		if level < 1 || level > 6 {
			return
		}
		headings = append(headings, models.Heading{
			Level: level,
			Text:  utils.NormalizeSpace(sel.Text()),
		})
	})
	return headings
}

// collectJSONLD parses every ld+json script block. Malformed blocks are kept
// with their parse error so rule evaluation can report them.
func collectJSONLD(doc *goquery.Document) ([]models.JSONLDBlock, []string) {
	var blocks []models.JSONLDBlock
	typeSet := make(map[string]bool)

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}
		block := models.JSONLDBlock{Raw: raw}

		var payload any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			block.ParseErr = err.Error()
			blocks = append(blocks, block)
			return
		}

		for _, obj := range flattenJSONLD(payload) {
			if block.Parsed == nil {
				block.Parsed = obj
			}
			for _, typ := range jsonldTypes(obj) {
				block.Types = append(block.Types, typ)
				typeSet[typ] = true
			}
		}
		blocks = append(blocks, block)
	})

	if len(typeSet) == 0 {
		return blocks, nil
	}
	types := make([]string, 0, len(typeSet))
	for typ := range typeSet {
		types = append(types, typ)
	}
	sort.Strings(types)
	return blocks, types
}

// flattenJSONLD expands top-level arrays and @graph containers into the
// individual node objects they carry
func flattenJSONLD(payload any) []map[string]any {
	switch v := payload.(type) {
	case map[string]any:
		objects := []map[string]any{v}
		if graph, ok := v["@graph"].([]any); ok {
			for _, node := range graph {
				if obj, ok := node.(map[string]any); ok {
					objects = append(objects, obj)
				}
			}
		}
		return objects
	case []any:
		var objects []map[string]any
		for _, node := range v {
			objects = append(objects, flattenJSONLD(node)...)
		}
		return objects
	default:
		return nil
	}
}

// jsonldTypes extracts the @type value(s) of a node
func jsonldTypes(obj map[string]any) []string {
	switch typ := obj["@type"].(type) {
	case string:
		return []string{typ}
	case []any:
		var types []string
		for _, entry := range typ {
			if s, ok := entry.(string); ok {
				types = append(types, s)
			}
		}
		return types
	default:
		return nil
	}
}

// collectImageStats summarizes alt-text coverage of the page's images
func collectImageStats(doc *goquery.Document) models.ImageStats {
	var stats models.ImageStats
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		stats.Total++
		alt, ok := sel.Attr("alt")
		alt = utils.NormalizeSpace(alt)
		if !ok || alt == "" {
			stats.MissingAlt++
			return
		}
		if len(alt) < 4 || weakAltValues[strings.ToLower(alt)] {
			stats.WeakAlt++
		}
	})
	return stats
}

// metaContent returns the content attribute of a named meta tag
func metaContent(doc *goquery.Document, name string) string {
	content, _ := doc.Find(`head meta[name="` + name + `"]`).First().Attr("content")
	return content
}
