package handler

import (
	"fmt"
	"strings"

	"lostandfound-exchange/dao"
	"lostandfound-exchange/match"
)

var lostStatusText = map[string]string{
	dao.LostOpen:     "寻找中",
	dao.LostResolved: "已找到",
	dao.LostClosed:   "已关闭",
}

var foundStatusText = map[string]string{
	dao.FoundUnclaimed: "待认领",
	dao.FoundClaimed:   "已认领",
	dao.FoundReturned:  "已归还",
}

// RecommendationMarkdown 每条推荐生成一段 markdown
func RecommendationMarkdown(recs []match.Recommendation) (mds []string) {
	builder := strings.Builder{}
	for _, rec := range recs {
		builder.Reset()
		builder.WriteString(fmt.Sprintf("**相似度 %.1f%%**\n", rec.Similarity))
		builder.WriteString(fmt.Sprintf("丢失物品记录 ID:%d %s\n", rec.Lost.ItemId, rec.Lost.Title))
		builder.WriteString(fmt.Sprintf("捡到物品记录 ID:%d\n", rec.Found.ItemId))
		builder.WriteString(fmt.Sprintf("物品名称:%s\n", rec.Found.Title))
		builder.WriteString(fmt.Sprintf("拾取地点:%s\n", rec.Found.Location))
		if !rec.Found.FoundDate.IsZero() {
			builder.WriteString(fmt.Sprintf("拾取日期:%s\n", rec.Found.FoundDate.Format("2006-01-02")))
		}
		builder.WriteString(fmt.Sprintf("描述:%s\n", rec.Found.Description))
		if rec.Found.Tags != "" {
			builder.WriteString(fmt.Sprintf(">标签:%s\n", rec.Found.Tags))
		}
		builder.WriteString(fmt.Sprintf("状态:%s\n", foundStatusText[rec.Found.Status]))
		mds = append(mds, builder.String())
	}
	return
}
