package match

import (
	"context"
	"sort"
	"strconv"

	"github.com/apex/log"

	"lostandfound-exchange/dao"
	"lostandfound-exchange/metrics"
	"lostandfound-exchange/utils"
)

// DefaultThreshold 相似度必须严格大于该值才会推荐
const DefaultThreshold = 0.3

// Source 推荐所需的查询
type Source interface {
	OpenLostItems(ctx context.Context, userId uint) ([]dao.LostItem, error)
	UnclaimedFoundItems(ctx context.Context, category string) ([]dao.FoundItem, error)
}

type Recommendation struct {
	Lost       dao.LostItem  `json:"lost_item"`
	Found      dao.FoundItem `json:"found_item"`
	Score      float64       `json:"-"`
	Similarity float64       `json:"similarity"` // 百分比, 保留一位小数
}

type Engine struct {
	source    Source
	threshold float64
}

func NewEngine(source Source, threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{source: source, threshold: threshold}
}

// Recommend 每次调用都重新计算, 不做缓存
func (e *Engine) Recommend(ctx context.Context, userId uint) ([]Recommendation, error) {
	defer utils.MetricTimeCost("recommend")()
	lostItems, err := e.source.OpenLostItems(ctx, userId)
	if err != nil {
		return nil, err
	}
	recs := []Recommendation{}
	// 同一类别的候选只查询一次
	candidates := map[string][]dao.FoundItem{}
	for _, lost := range lostItems {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, ok := candidates[lost.Category]
		if !ok {
			found, err = e.source.UnclaimedFoundItems(ctx, lost.Category)
			if err != nil {
				return nil, err
			}
			candidates[lost.Category] = found
		}
		for _, f := range found {
			score := Score(&lost, &f)
			if score > e.threshold {
				recs = append(recs, Recommendation{
					Lost:       lost,
					Found:      f,
					Score:      score,
					Similarity: Percent(score),
				})
			}
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Score > recs[j].Score
	})
	metrics.RecommendationsReturned.Observe(float64(len(recs)))
	log.WithFields(log.Fields{"user": userId, "lost": len(lostItems), "matches": len(recs)}).Debug("recommendations computed")
	return recs, nil
}

// Percent 按 score*100 的精确值保留一位小数, 恰好居中时取偶数
func Percent(score float64) float64 {
	p, _ := strconv.ParseFloat(strconv.FormatFloat(score*100, 'f', 1, 64), 64)
	return p
}
