package match

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"lostandfound-exchange/dao"
)

// 各项权重, 总和为 1
const (
	categoryWeight    = 0.3
	titleWeight       = 0.3
	descriptionWeight = 0.2
	locationWeight    = 0.2
)

// Score 计算失物与拾物的相似度, 结果在 [0,1] 之间
func Score(lost *dao.LostItem, found *dao.FoundItem) float64 {
	score := 0.0
	if lost.Category == found.Category {
		score += categoryWeight
	}
	score += Ratio(strings.ToLower(lost.Title), strings.ToLower(found.Title)) * titleWeight
	score += Ratio(strings.ToLower(lost.Description), strings.ToLower(found.Description)) * descriptionWeight

	// 地点互相包含即视为重叠
	lostLoc, foundLoc := strings.ToLower(lost.Location), strings.ToLower(found.Location)
	if strings.Contains(foundLoc, lostLoc) || strings.Contains(lostLoc, foundLoc) {
		score += locationWeight
	}
	return score
}

// Ratio 最长公共块匹配比例 2*M/T, 按 rune 比较.
// b 长度不小于 200 时高频字符不作为匹配起点 (difflib autojunk)
func Ratio(a, b string) float64 {
	sa, sb := splitRunes(a), splitRunes(b)
	if len(sa)+len(sb) == 0 {
		return 0
	}
	return difflib.NewMatcher(sa, sb).Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
