package crawler

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	scoreBase      = 10
	scoreKeyword   = 50
	scoreBrand     = 30
	scoreModelCode = 15

	penaltyLeftoverNoise = 20
	penaltyLengthBand    = 10

	nameLengthMin = 15
	nameLengthMax = 150
)

// knownBrands is the lookup table for both scoring and brand extraction.
// Matching is case-insensitive substring.
var knownBrands = []string{
	"APPLE", "삼성", "SAMSUNG", "LG", "소니", "SONY",
	"나이키", "NIKE", "아디다스", "ADIDAS", "푸마", "PUMA",
	"유니클로", "UNIQLO", "자라", "ZARA",
	"농심", "오뚜기", "삼양", "팔도", "롯데", "LOTTE", "CJ", "동원",
	"아모레퍼시픽", "이니스프리", "에뛰드", "미샤", "MISSHA", "더페이스샵",
}

var modelCodePattern = regexp.MustCompile(`[A-Z0-9]{3,}`)

// leftoverNoiseTokens are review/shipping tokens that survive trimming.
// Price remnants are matched separately; the bare syllable 원 is a normal
// name component (원피스).
var leftoverNoiseTokens = []string{"리뷰", "별점", "할인", "배송"}

var leftoverPricePattern = regexp.MustCompile(`\d\s*원`)

// scoreRule is one pure scoring function. A candidate's score is the sum of
// every rule, clamped at zero; the keyword argument is already lowercased.
type scoreRule func(text, lower, keyword string) int

var scoreRules = []scoreRule{
	// base score for any surviving fragment
	func(text, lower, keyword string) int {
		return scoreBase
	},
	// large bonus when the fragment contains the search keyword
	func(text, lower, keyword string) int {
		if keyword != "" && strings.Contains(lower, keyword) {
			return scoreKeyword
		}
		return 0
	},
	// medium bonus for a known brand token
	func(text, lower, keyword string) int {
		for _, brand := range knownBrands {
			if strings.Contains(lower, strings.ToLower(brand)) {
				return scoreBrand
			}
		}
		return 0
	},
	// small bonus for a model-code-like run of capitals and digits
	func(text, lower, keyword string) int {
		if modelCodePattern.MatchString(text) {
			return scoreModelCode
		}
		return 0
	},
	// penalty for leftover price/review/shipping tokens
	func(text, lower, keyword string) int {
		if leftoverPricePattern.MatchString(text) {
			return -penaltyLeftoverNoise
		}
		for _, token := range leftoverNoiseTokens {
			if strings.Contains(lower, token) {
				return -penaltyLeftoverNoise
			}
		}
		return 0
	},
	// penalty outside the reasonable name length band
	func(text, lower, keyword string) int {
		n := utf8.RuneCountInString(text)
		if n < nameLengthMin || n > nameLengthMax {
			return -penaltyLengthBand
		}
		return 0
	},
}

// scoreCandidate applies the scoring pipeline to one trimmed fragment
func scoreCandidate(text, keyword string) int {
	lower := strings.ToLower(text)
	kw := strings.ToLower(keyword)

	total := 0
	for _, rule := range scoreRules {
		total += rule(text, lower, kw)
	}
	if total < 0 {
		return 0
	}
	return total
}
