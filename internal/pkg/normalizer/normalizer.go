// Package normalizer turns raw marketplace text into a space-joined
// sequence of noun base forms ready for feature extraction.
//
// The cleanup rules follow the neologd normalization recommendations for
// Japanese text; segmentation uses the kagome morphological analyzer with
// the IPA dictionary.
package normalizer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
	"golang.org/x/text/unicode/norm"

	"detector/internal/pkg/config"
)

// Part-of-speech subcategories that behave as non-content and are dropped
// even when the head category is a noun.
var excludedSubPOS = map[string]bool{
	"非自立": true,
	"接尾":  true,
	"代名詞": true,
	"数":   true,
}

type Normalizer struct {
	urlRe          *regexp.Regexp
	removeRe       *regexp.Regexp
	trustedDomains []string
	segmenter      *tokenizer.Tokenizer
}

// New compiles the cleanup patterns and loads the segmentation dictionary.
// Construction is expensive; share one Normalizer per process.
func New(cfg *config.Config) (*Normalizer, error) {
	urlRe, err := regexp.Compile(cfg.URLPattern)
	if err != nil {
		return nil, err
	}

	// Longer phrases first, otherwise a shorter alternative wins and leaves
	// the tail of the longer phrase behind.
	words := make([]string, len(cfg.RemoveWords))
	copy(words, cfg.RemoveWords)
	sort.Slice(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	removeRe, err := regexp.Compile(strings.Join(quoted, "|"))
	if err != nil {
		return nil, err
	}

	segmenter, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}

	return &Normalizer{
		urlRe:          urlRe,
		removeRe:       removeRe,
		trustedDomains: cfg.TrustedDomains,
		segmenter:      segmenter,
	}, nil
}

var (
	asciiNumRe = regexp.MustCompile(`[0-9０-９]`)
	kanjiNumRe = regexp.MustCompile(`[一二三四五六七八九十壱弐参拾百千万萬億兆〇]+`)

	// Full-width digits/Latin and half-width kana, normalized via NFKC.
	widthClassRe = regexp.MustCompile(`[０-９Ａ-Ｚａ-ｚ｡-ﾟ]+`)

	hyphenRe  = regexp.MustCompile(`[˗֊‐‑‒–⁃⁻₋−]+`)
	choonpuRe = regexp.MustCompile(`[﹣－ｰ—―─━ー]+`)
	tildeRe   = regexp.MustCompile(`[~∼∾〜〰～]`)

	// Full-width punctuation folded back to canonical half-width, keeping
	// ＝, ・, 「, 」, 。 and 、 as-is.
	punctClassRe = regexp.MustCompile(`[！”＃＄％＆’（）＊＋，－．／：；＜＞？＠［￥］＾＿｀｛｜｝〜]+`)

	spaceRunRe = regexp.MustCompile(`[ 　]+`)

	cjkBlocks  = `\x{4E00}-\x{9FFF}\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{3000}-\x{303F}\x{FF00}-\x{FFEF}`
	basicLatin = `\x{0000}-\x{007F}`

	betweenCJKRe    = regexp.MustCompile(`([` + cjkBlocks + `]) ([` + cjkBlocks + `])`)
	cjkThenLatinRe  = regexp.MustCompile(`([` + cjkBlocks + `]) ([` + basicLatin + `])`)
	latinThenCJKRe  = regexp.MustCompile(`([` + basicLatin + `]) ([` + cjkBlocks + `])`)
	halfToFullPunct = buildTranslation()
)

func buildTranslation() map[rune]rune {
	from := []rune("!\"#$%&'()*+,-./:;<=>?@[¥]^_`{|}~｡､･｢｣")
	to := []rune("！”＃＄％＆’（）＊＋，－．／：；＜＝＞？＠［￥］＾＿｀｛｜｝〜。、・「」")
	table := make(map[rune]rune, len(from))
	for i, r := range from {
		table[r] = to[i]
	}
	return table
}

// Normalize applies every text-cleanup rule except segmentation: URL
// masking, boilerplate removal, numeral stripping, width and punctuation
// normalization, and CJK-aware whitespace collapsing. Idempotent.
func (n *Normalizer) Normalize(s string) string {
	s = strings.TrimSpace(s)

	s = n.maskURLs(s)
	s = n.removeRe.ReplaceAllString(s, "")
	s = removeNumerals(s)

	s = widthClassRe.ReplaceAllStringFunc(s, norm.NFKC.String)
	s = strings.ReplaceAll(s, "－", "-")

	s = hyphenRe.ReplaceAllString(s, "-")
	s = choonpuRe.ReplaceAllString(s, "ー")
	s = tildeRe.ReplaceAllString(s, "")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if full, ok := halfToFullPunct[r]; ok {
			b.WriteRune(full)
		} else {
			b.WriteRune(r)
		}
	}
	s = b.String()

	s = collapseSpaces(s)

	s = punctClassRe.ReplaceAllStringFunc(s, norm.NFKC.String)
	s = strings.ReplaceAll(s, "’", "'")
	s = strings.ReplaceAll(s, "”", `"`)

	return s
}

// Replaces every URL with the literal token URL, except URLs on a trusted
// domain, which are deleted outright. The mask is upper case because the
// dictionary registers the term that way.
func (n *Normalizer) maskURLs(s string) string {
	return n.urlRe.ReplaceAllStringFunc(s, func(m string) string {
		for _, domain := range n.trustedDomains {
			if strings.Contains(m, domain) {
				return ""
			}
		}
		return "URL"
	})
}

// Numerals carry no signal for similarity, so they are stripped entirely:
// ASCII, full-width, and kanji numerals alike.
func removeNumerals(s string) string {
	s = asciiNumRe.ReplaceAllString(s, "")
	return kanjiNumRe.ReplaceAllString(s, "")
}

func collapseSpaces(s string) string {
	s = spaceRunRe.ReplaceAllString(s, " ")
	for _, re := range []*regexp.Regexp{betweenCJKRe, cjkThenLatinRe, latinThenCJKRe} {
		for re.MatchString(s) {
			s = re.ReplaceAllString(s, "${1}${2}")
		}
	}
	return s
}

// Parse normalizes doc and reduces it to the dictionary base forms of its
// content nouns, joined by single spaces. Empty input yields empty output.
func (n *Normalizer) Parse(doc string) string {
	if doc == "" {
		return ""
	}

	tokens := n.segmenter.Tokenize(n.Normalize(doc))

	var kept []string
	for _, token := range tokens {
		pos := token.POS()
		if len(pos) == 0 || pos[0] != "名詞" {
			continue
		}
		if excludedPOS(pos) {
			continue
		}
		base, ok := token.BaseForm()
		if !ok || base == "*" {
			base = token.Surface
		}
		kept = append(kept, base)
	}

	return strings.Join(kept, " ")
}

// The subcategory check looks at the last and second-to-last meaningful
// POS elements, mirroring how the chasen feature string splits on "-".
func excludedPOS(pos []string) bool {
	parts := make([]string, 0, len(pos))
	for _, p := range pos {
		if p != "*" && p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return false
	}
	if excludedSubPOS[parts[len(parts)-1]] {
		return true
	}
	if len(parts) >= 3 && excludedSubPOS[parts[len(parts)-2]] {
		return true
	}
	return false
}
