package crawler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	// how many ancestor levels around a product link are scanned for text
	maxTraversalDepth = 7
	// fragments shorter than this carry no usable product name
	minFragmentLength = 10
	// cap on gathered fragments per link neighborhood
	maxFragments = 64

	// KRW sanity band for any extracted price
	priceSaneMin = 1_000
	priceSaneMax = 50_000_000

	maxNameRunes = 60

	brandUnknown = "브랜드 정보 없음"
)

// noisePhrases disqualify a fragment entirely; these are UI chrome strings
// that appear near product links on listing pages.
var noisePhrases = []string{
	"장바구니", "바로구매", "찜하기", "쿠폰받기", "상세보기",
	"무이자", "카드혜택", "적립", "배송비", "무료배송",
	"로그인", "회원가입", "고객센터", "광고", "ADAD",
	"이전", "다음", "더보기", "전체보기",
}

// trimPatterns cut a fragment at the first price/review/shipping clause so
// the remaining prefix can be scored as a product name.
var trimPatterns = []*regexp.Regexp{
	regexp.MustCompile(`판매가격.*`),
	regexp.MustCompile(`정상가격.*`),
	regexp.MustCompile(`\d{1,3}(?:,\d{3})*원.*`),
	regexp.MustCompile(`(?:리뷰|별점|평점)\s*\d.*`),
	regexp.MustCompile(`(?:카드할인|즉시할인|추가할인|사은품|증정).*`),
	regexp.MustCompile(`(?:새벽배송|당일배송|무료배송|택배배송).*`),
}

var spacePattern = regexp.MustCompile(`\s+`)

// pricePatterns are tried in order; the first pattern with any sane match
// wins and the smallest sane value among its matches is taken. Labeled
// prices outrank the generic "N원" shape, which outranks bare digit runs.
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`판매가격\s*(\d{1,3}(?:,\d{3})*)`),
	regexp.MustCompile(`정상가격\s*(\d{1,3}(?:,\d{3})*)`),
	regexp.MustCompile(`할인가\s*(\d{1,3}(?:,\d{3})*)`),
	regexp.MustCompile(`(\d{1,3}(?:,\d{3})*)\s*원`),
	regexp.MustCompile(`가격\s*:?\s*(\d{1,3}(?:,\d{3})*)`),
	regexp.MustCompile(`(\d{4,8})`),
}

// cleanNamePatterns strip residual listing chrome from a selected name
var cleanNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`리뷰\s*\d+|별점\s*[\d.]*|평점\s*[\d.]*`),
	regexp.MustCompile(`정상가격|판매가격|최고판매가|할인가`),
	regexp.MustCompile(`ADAD란\?\s*툴팁\s*열기|광고\s*안내`),
	regexp.MustCompile(`새벽배송|당일배송|무료배송`),
	regexp.MustCompile(`\d+만원\s*이하|\d+만원\s*~\s*\d+만원`),
	regexp.MustCompile(`검색\s*필터|브랜드\s*전체보기`),
}

var firstTokenPattern = regexp.MustCompile(`^[A-Za-z가-힣]+$`)

// placeholderPrices are the base prices cycled through when synthesizing
// placeholder items for a failed or empty crawl.
var placeholderPrices = []int64{29900, 49900, 79900, 99900, 149900, 199900, 299900}

// Extractor turns parsed documents into Items using a SiteProfile's
// selectors plus text heuristics. Extraction never fails: every path
// degrades to placeholder values instead of returning an error.
type Extractor struct {
	profile SiteProfile
}

// NewExtractor creates an extractor for one source site
func NewExtractor(profile SiteProfile) *Extractor {
	return &Extractor{profile: profile}
}

// Profile returns the extractor's site profile
func (e *Extractor) Profile() SiteProfile {
	return e.profile
}

// candidatesNear gathers text fragments from the neighborhood of a product
// link: the link's own text, then name-selector hits and direct child text
// at each ancestor level up to maxTraversalDepth.
func (e *Extractor) candidatesNear(link *goquery.Selection) []string {
	fragments := make([]string, 0, 16)
	if t := strings.TrimSpace(link.Text()); t != "" {
		fragments = append(fragments, t)
	}

	cur := link.Parent()
	for level := 0; level < maxTraversalDepth && cur.Length() > 0; level++ {
		for _, sel := range e.profile.NameSelectors {
			cur.Find(sel).Each(func(_ int, s *goquery.Selection) {
				if t := strings.TrimSpace(s.Text()); t != "" {
					fragments = append(fragments, t)
				}
			})
		}
		cur.Children().Each(func(_ int, s *goquery.Selection) {
			if t := strings.TrimSpace(s.Text()); t != "" {
				fragments = append(fragments, t)
			}
		})
		if len(fragments) >= maxFragments {
			break
		}
		cur = cur.Parent()
	}

	if len(fragments) > maxFragments {
		fragments = fragments[:maxFragments]
	}
	return fragments
}

// SelectName trims, filters and scores the fragments and returns the best
// surviving candidate as a cleaned product name. Ties keep the first-seen
// fragment. When nothing survives, a keyword placeholder is returned.
func (e *Extractor) SelectName(fragments []string, keyword string) (string, Confidence) {
	var best Candidate
	for _, raw := range fragments {
		text := trimFragment(raw)
		if utf8.RuneCountInString(text) < minFragmentLength {
			continue
		}
		if isNoiseFragment(text) {
			continue
		}
		if score := scoreCandidate(text, keyword); score > best.Score {
			best = Candidate{Text: text, Score: score}
		}
	}

	if best.Score > 0 {
		return cleanProductName(best.Text), ConfidenceResolved
	}
	return keyword + " 관련 상품", ConfidencePlaceholder
}

// trimFragment normalizes whitespace and cuts the fragment at the first
// trailing price/review/shipping clause.
func trimFragment(raw string) string {
	text := spacePattern.ReplaceAllString(strings.TrimSpace(raw), " ")
	for _, pattern := range trimPatterns {
		text = pattern.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

// isNoiseFragment reports whether the fragment is pure UI chrome
func isNoiseFragment(text string) bool {
	for _, phrase := range noisePhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// cleanProductName strips residual chrome, collapses whitespace and caps
// the name at maxNameRunes.
func cleanProductName(name string) string {
	for _, pattern := range cleanNamePatterns {
		name = pattern.ReplaceAllString(name, "")
	}
	name = strings.TrimSpace(spacePattern.ReplaceAllString(name, " "))

	runes := []rune(name)
	if len(runes) > maxNameRunes {
		name = strings.TrimSpace(string(runes[:maxNameRunes])) + "..."
	}
	return name
}

// ExtractPrice scans text for a KRW price. Patterns are tried in priority
// order; within the first pattern that yields any sane value the smallest
// one is returned, since listing blocks mix sale and original prices and
// the sale price is the lower figure. Returns 0 when nothing sane matches.
func ExtractPrice(text string) int64 {
	for _, pattern := range pricePatterns {
		matches := pattern.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}

		var best int64 = -1
		for _, m := range matches {
			v, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
			if err != nil {
				continue
			}
			if v < priceSaneMin || v > priceSaneMax {
				continue
			}
			if best < 0 || v < best {
				best = v
			}
		}
		if best > 0 {
			return best
		}
	}
	return 0
}

// ExtractBrand resolves a brand by cascade: profile selectors near the
// link, then a known-brand token inside the name, then the name's first
// alphabetic token, then the unknown marker.
func (e *Extractor) ExtractBrand(near *goquery.Selection, name string) string {
	if near != nil {
		for _, sel := range e.profile.BrandSelectors {
			if t := strings.TrimSpace(near.Find(sel).First().Text()); t != "" {
				return t
			}
		}
	}
	return brandFromName(name)
}

func brandFromName(name string) string {
	upper := strings.ToUpper(name)
	for _, brand := range knownBrands {
		if strings.Contains(upper, strings.ToUpper(brand)) {
			return brand
		}
	}

	if fields := strings.Fields(name); len(fields) > 0 {
		first := fields[0]
		n := utf8.RuneCountInString(first)
		if n > 2 && n < 15 && firstTokenPattern.MatchString(first) {
			return first
		}
	}
	return brandUnknown
}

// extractImage finds the first image with a plausible file extension in the
// given scope, preferring data-src over src for lazy-loaded slots.
func (e *Extractor) extractImage(scope *goquery.Selection) string {
	var found string
	for _, sel := range e.profile.ImageSelectors {
		scope.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			src, ok := s.Attr("data-src")
			if !ok || src == "" {
				src, ok = s.Attr("src")
			}
			if !ok || !hasImageExt(src) {
				return true
			}
			found = e.resolveURL(src)
			return false
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func hasImageExt(src string) bool {
	lower := strings.ToLower(src)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// ItemFromNeighborhood builds an item from the listing-page context around
// one discovered link, without fetching the detail page.
func (e *Extractor) ItemFromNeighborhood(link Link, keyword string) Item {
	name, confidence := e.SelectName(e.candidatesNear(link.sel), keyword)

	// prices usually sit a level or two above the link itself
	var price int64
	scope := link.sel
	for level := 0; level <= 3 && scope.Length() > 0; level++ {
		if price = ExtractPrice(scope.Text()); price > 0 {
			break
		}
		scope = scope.Parent()
	}

	imageScope := link.sel.Parent()
	if p := imageScope.Parent(); p.Length() > 0 {
		imageScope = p
	}

	return Item{
		ID:         link.ID,
		Name:       name,
		Price:      price,
		ImageURL:   e.extractImage(imageScope),
		Brand:      e.ExtractBrand(link.sel.Parent(), name),
		Source:     e.profile.Name,
		URL:        link.URL,
		Confidence: confidence,
		FetchedAt:  time.Now(),
	}
}

// FromListing extracts items for every non-ad product link on a listing
// page, in document order, up to max links.
func (e *Extractor) FromListing(doc *goquery.Document, keyword string, max int) []Item {
	links := e.DiscoverLinks(doc, max)
	items := make([]Item, 0, len(links))
	for _, link := range links {
		items = append(items, e.ItemFromNeighborhood(link, keyword))
	}
	return items
}

// FromProductPage extracts an item from a fetched detail page. Fields that
// cannot be resolved stay at their zero values so the caller can merge in
// listing-page fallbacks.
func (e *Extractor) FromProductPage(doc *goquery.Document, url, keyword string) Item {
	item := Item{
		Source:     e.profile.Name,
		URL:        url,
		Confidence: ConfidencePlaceholder,
		FetchedAt:  time.Now(),
	}

	for _, sel := range e.profile.PageNameSelectors {
		t := strings.TrimSpace(doc.Find(sel).First().Text())
		if t == "" || strings.EqualFold(t, "SSG.COM") {
			continue
		}
		if utf8.RuneCountInString(t) < minFragmentLength {
			continue
		}
		item.Name = cleanProductName(trimFragment(t))
		item.Confidence = ConfidenceResolved
		break
	}

	item.Price = e.PagePrice(doc)
	if op := ExtractPrice(doc.Find(".cdtl_old_price").Text()); op > item.Price {
		item.OriginalPrice = op
	}
	if item.Name != "" {
		item.Brand = e.ExtractBrand(doc.Selection, item.Name)
	}
	item.ImageURL = e.extractImage(doc.Selection)
	return item
}

// PagePrice resolves the current price on a detail page: the profile's
// price selectors first, then a scan over the whole page text.
func (e *Extractor) PagePrice(doc *goquery.Document) int64 {
	for _, sel := range e.profile.PagePriceSelectors {
		var price int64
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			price = ExtractPrice(s.Text())
			return price == 0
		})
		if price > 0 {
			return price
		}
	}
	return ExtractPrice(doc.Text())
}

// PlaceholderItems synthesizes low-confidence items for a keyword when the
// crawl produced nothing. Prices cycle through a fixed base list.
func (e *Extractor) PlaceholderItems(keyword string, n int) []Item {
	if n <= 0 {
		return nil
	}
	now := time.Now()
	items := make([]Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, Item{
			ID:         fmt.Sprintf("placeholder-%d", i+1),
			Name:       fmt.Sprintf("%s 관련 상품 %d", keyword, i+1),
			Price:      placeholderPrices[i%len(placeholderPrices)],
			Brand:      brandUnknown,
			Source:     e.profile.Name,
			URL:        fmt.Sprintf("%s/item/itemView.ssg?itemId=PLACEHOLDER%04d", e.profile.BaseURL, i+1),
			Confidence: ConfidencePlaceholder,
			FetchedAt:  now,
		})
	}
	return items
}
