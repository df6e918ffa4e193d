package graph

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"site-audit/pkg/models"
	"site-audit/pkg/parse"
	"site-audit/pkg/utils"
)

const (
	pageTopAnchors = 5
	siteTopAnchors = 10
	topFocusSources = 10
)

// relationship is one distinct inlink edge: a source page referring to a
// target with a specific anchor/rel/placement. Occurrence counts are
// deliberately absent; repetition never inflates graph statistics.
type relationship struct {
	source    string
	target    string
	anchor    string // case-normalized
	navLikely bool
	generic   bool
	empty     bool
}

// Builder computes the internal link graph over one crawl's pages
type Builder struct {
	genericAnchors map[string]bool
	log            *logrus.Entry
}

// NewBuilder creates a Builder with the given generic-anchor lexicon
func NewBuilder(genericAnchors []string, log *logrus.Entry) *Builder {
	lexicon := make(map[string]bool, len(genericAnchors))
	for _, anchor := range genericAnchors {
		lexicon[utils.NormalizeAnchor(anchor)] = true
	}
	return &Builder{genericAnchors: lexicon, log: log}
}

// Build derives the full link graph from the crawled pages. It also fills
// each page's InlinksCount and InlinksAnchorsTop fields. focusURL, when
// non-empty, must already be normalized.
func (b *Builder) Build(pages []*models.PageExtract, focusURL string) *models.InternalLinkGraph {
	crawled := make(map[string]*models.PageExtract, len(pages))
	for _, page := range pages {
		crawled[page.FinalURL] = page
		if page.URL != page.FinalURL {
			crawled[page.URL] = page
		}
	}

	rels := b.collectRelationships(pages, crawled)

	graph := &models.InternalLinkGraph{
		Inlinks:         make(map[string]int),
		AnchorsByTarget: make(map[string][]models.AnchorCount),
		FocusURL:        focusURL,
	}

	// distinct source pages per target
	sourcesByTarget := make(map[string]map[string]bool)
	// distinct (source, anchor) pairs per target, keyed by anchor
	anchorPairs := make(map[string]map[string]map[string]bool)

	for _, rel := range rels {
		if sourcesByTarget[rel.target] == nil {
			sourcesByTarget[rel.target] = make(map[string]bool)
		}
		sourcesByTarget[rel.target][rel.source] = true

		if anchorPairs[rel.target] == nil {
			anchorPairs[rel.target] = make(map[string]map[string]bool)
		}
		if anchorPairs[rel.target][rel.anchor] == nil {
			anchorPairs[rel.target][rel.anchor] = make(map[string]bool)
		}
		anchorPairs[rel.target][rel.anchor][rel.source] = true
	}

	for target, sources := range sourcesByTarget {
		graph.Inlinks[target] = len(sources)
	}
	for target, anchors := range anchorPairs {
		graph.AnchorsByTarget[target] = sortedAnchorCounts(anchors, 0)
	}

	for _, page := range pages {
		page.InlinksCount = graph.Inlinks[page.FinalURL]
		if anchors := graph.AnchorsByTarget[page.FinalURL]; len(anchors) > pageTopAnchors {
			page.InlinksAnchorsTop = anchors[:pageTopAnchors]
		} else {
			page.InlinksAnchorsTop = anchors
		}
	}

	b.fillFocus(graph, rels, focusURL)
	graph.Summary = b.buildSummary(pages, rels, graph)
	return graph
}

// collectRelationships walks every page's internal outlinks and keeps the
// edges whose target is part of the crawl. Self-links are excluded.
func (b *Builder) collectRelationships(pages []*models.PageExtract, crawled map[string]*models.PageExtract) []relationship {
	var rels []relationship
	for _, source := range pages {
		if !source.IsAvailable() {
			continue
		}
		for _, link := range source.OutlinksInternal {
			targetPage, known := crawled[link.TargetURL]
			if !known {
				continue
			}
			target := targetPage.FinalURL
			if target == source.FinalURL {
				continue
			}
			anchor := utils.NormalizeAnchor(link.AnchorText)
			rels = append(rels, relationship{
				source:    source.FinalURL,
				target:    target,
				anchor:    anchor,
				navLikely: link.IsNavLikely,
				generic:   anchor != "" && b.genericAnchors[anchor],
				empty:     anchor == "",
			})
		}
	}
	return rels
}

// fillFocus computes the focus page's inlink count and top contributing sources
func (b *Builder) fillFocus(graph *models.InternalLinkGraph, rels []relationship, focusURL string) {
	if focusURL == "" {
		return
	}
	graph.FocusInlinksCount = graph.Inlinks[focusURL]

	// distinct anchors contributed per source
	contributions := make(map[string]map[string]bool)
	for _, rel := range rels {
		if rel.target != focusURL {
			continue
		}
		if contributions[rel.source] == nil {
			contributions[rel.source] = make(map[string]bool)
		}
		contributions[rel.source][rel.anchor] = true
	}

	sources := make([]models.SourceContribution, 0, len(contributions))
	for source, anchors := range contributions {
		sources = append(sources, models.SourceContribution{SourceURL: source, Count: len(anchors)})
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Count != sources[j].Count {
			return sources[i].Count > sources[j].Count
		}
		return sources[i].SourceURL < sources[j].SourceURL
	})
	if len(sources) > topFocusSources {
		sources = sources[:topFocusSources]
	}
	graph.TopInlinkSourcesToFocus = sources
}

// buildSummary computes the site-wide link statistics. Percentages divide by
// the number of distinct relationships; raw occurrence repetition never
// shifts them.
func (b *Builder) buildSummary(pages []*models.PageExtract, rels []relationship, graph *models.InternalLinkGraph) models.InternalLinksSummary {
	summary := models.InternalLinksSummary{
		TotalPages:               len(pages),
		TotalInlinkRelationships: len(rels),
	}

	for _, page := range pages {
		if !page.IsAvailable() || parse.IsRootPath(page.FinalURL) {
			continue
		}
		switch graph.Inlinks[page.FinalURL] {
		case 0:
			summary.OrphanPages = append(summary.OrphanPages, page.FinalURL)
		case 1:
			summary.NearOrphanPages = append(summary.NearOrphanPages, page.FinalURL)
		}
	}
	sort.Strings(summary.OrphanPages)
	sort.Strings(summary.NearOrphanPages)

	if len(rels) > 0 {
		var navLikely, generic, empty int
		for _, rel := range rels {
			if rel.navLikely {
				navLikely++
			}
			if rel.generic {
				generic++
			}
			if rel.empty {
				empty++
			}
		}
		total := float64(len(rels))
		summary.NavLikelyPercent = 100 * float64(navLikely) / total
		summary.GenericAnchorPercent = 100 * float64(generic) / total
		summary.EmptyAnchorPercent = 100 * float64(empty) / total
	}

	// site-wide anchors: distinct (source, target) pairs per anchor
	siteAnchors := make(map[string]map[string]bool)
	for _, rel := range rels {
		if siteAnchors[rel.anchor] == nil {
			siteAnchors[rel.anchor] = make(map[string]bool)
		}
		siteAnchors[rel.anchor][rel.source+"\x00"+rel.target] = true
	}
	summary.TopAnchors = sortedAnchorCounts(siteAnchors, siteTopAnchors)

	return summary
}

// sortedAnchorCounts flattens anchor->set maps into a sorted slice: count
// descending, then anchor ascending (empty string first). limit 0 keeps all.
func sortedAnchorCounts(anchors map[string]map[string]bool, limit int) []models.AnchorCount {
	counts := make([]models.AnchorCount, 0, len(anchors))
	for anchor, set := range anchors {
		counts = append(counts, models.AnchorCount{Anchor: anchor, Count: len(set)})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return strings.Compare(counts[i].Anchor, counts[j].Anchor) < 0
	})
	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}
