package parse

import (
	"strings"

	"github.com/sakkabuar/bilix-bot/internal/core"
)

// Rule maps a keyword list to a category. Rules are evaluated in order and
// the first match wins, which keeps classification deterministic when several
// keyword sets would match the same receipt.
type Rule struct {
	Category string
	Keywords []string
}

// Classifier assigns one category from a fixed ordered rule set to free text.
// It never fails: text matching no rule falls through to the general
// category.
type Classifier struct {
	rules []Rule
}

// DefaultRules returns the built-in rule set for Thai receipts: delivery and
// ride-hailing brands, restaurant terms, market and equipment vocabulary.
func DefaultRules() []Rule {
	return []Rule{
		{
			Category: core.CategoryFood,
			Keywords: []string{
				"grabfood", "line man", "lineman", "foodpanda", "robinhood",
				"restaurant", "cafe", "coffee", "kfc", "mcdonald",
				"อาหาร", "ร้านอาหาร", "กาแฟ", "ครัว", "ข้าว", "ก๋วยเตี๋ยว",
			},
		},
		{
			Category: core.CategoryTransport,
			Keywords: []string{
				"grab", "bolt", "taxi", "bts", "mrt", "toll", "easy pass",
				"ptt", "shell", "bangchak", "esso",
				"แท็กซี่", "ทางด่วน", "น้ำมัน", "วินมอเตอร์ไซค์", "รถไฟฟ้า",
			},
		},
		{
			Category: core.CategorySupplies,
			Keywords: []string{
				"makro", "market", "fresh mart", "lotus", "big c",
				"วัตถุดิบ", "ตลาด", "ของสด", "ผัก", "เนื้อ",
			},
		},
		{
			Category: core.CategoryEquipment,
			Keywords: []string{
				"homepro", "thaiwatsadu", "hardware", "equipment",
				"อุปกรณ์", "เครื่องมือ", "เครื่องครัว",
			},
		},
	}
}

// NewClassifier builds a classifier over the given ordered rules. Keywords
// are matched as case-insensitive substrings.
func NewClassifier(rules []Rule) *Classifier {
	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		nr := Rule{Category: r.Category, Keywords: make([]string, 0, len(r.Keywords))}
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			nr.Keywords = append(nr.Keywords, kw)
		}
		normalized = append(normalized, nr)
	}
	return &Classifier{rules: normalized}
}

// Classify returns exactly one category for the given text.
func (c *Classifier) Classify(text string) string {
	lowered := strings.ToLower(text)
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lowered, kw) {
				return r.Category
			}
		}
	}
	return core.CategoryGeneral
}
