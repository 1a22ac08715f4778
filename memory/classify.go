package memory

import "strings"

// Keyword sets per category, tested in declaration order; the first category
// with a match wins. Matching is substring on the lower-cased input, so the
// English keywords are listed in lower case.
var classifyKeywords = []struct {
	category Category
	keywords []string
}{
	{Work, []string{"工作", "项目", "公司", "work", "project", "meeting"}},
	{Family, []string{"家庭", "父母", "family", "parent"}},
	{Friendship, []string{"朋友", "聚会", "friend", "party"}},
	{Happiness, []string{"开心", "高兴", "happy", "joy"}},
}

// Classify maps free text to a category using keyword heuristics.
// It is pure and total: the same input always yields the same category, and
// text with no recognized keyword yields Other.
func Classify(content string) Category {
	lower := strings.ToLower(content)
	for _, set := range classifyKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(lower, kw) {
				return set.category
			}
		}
	}
	return Other
}
