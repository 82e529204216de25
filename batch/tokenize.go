package batch

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/rushteam/marketrec/core"
)

// Tokenize 把文本切成小写 token：按非字母数字边界切分；
// 含 CJK 字符的 token 额外产出字符 bigram，近似分词效果。
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	lowered := strings.ToLower(text)
	fields := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	var out []string
	for _, token := range fields {
		out = append(out, token)
		if !containsCJK(token) {
			continue
		}
		runes := []rune(token)
		for i := 0; i+1 < len(runes); i++ {
			out = append(out, string(runes[i:i+2]))
		}
	}
	return out
}

func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// PriceBucket 返回价格区间桶标签，固定分界点。
func PriceBucket(price float64) string {
	switch {
	case price <= 0:
		return "unknown"
	case price < 20:
		return "0-20"
	case price < 50:
		return "20-50"
	case price < 100:
		return "50-100"
	case price < 200:
		return "100-200"
	case price < 500:
		return "200-500"
	default:
		return "500+"
	}
}

// ExtractTerms 从商品提取带权 token 列表（多重集）。
// 类目加两次提升权重；名称取 unigram（长度 ≥2）；描述取 unigram（长度 ≥3）；
// 再补价格桶、成色、地区三个离散 token。
func ExtractTerms(p *core.Product) []string {
	var terms []string

	if cat := strings.TrimSpace(strings.ToLower(p.Category)); cat != "" {
		terms = append(terms, "cat:"+cat, "cat:"+cat)
	}

	for _, w := range Tokenize(p.Name) {
		if len([]rune(w)) > 1 {
			terms = append(terms, "name:"+w)
		}
	}

	for _, w := range Tokenize(p.Description) {
		if len([]rune(w)) > 2 {
			terms = append(terms, "desc:"+w)
		}
	}

	terms = append(terms, "price:"+PriceBucket(p.Price))
	terms = append(terms, "condition:"+strconv.Itoa(p.ConditionLevel))

	if loc := strings.TrimSpace(strings.ToLower(p.Location)); loc != "" {
		terms = append(terms, "loc:"+loc)
	}

	return terms
}
