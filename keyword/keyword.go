package keyword

import (
	"strings"

	"github.com/yanyiwu/gojieba"

	"lostandfound-exchange/utils"
)

// 单条记录最多保留的标签数
const maxTags = 8

// Extractor 基于 jieba 带词性分词提取标签, 字典只加载一次
type Extractor struct {
	jieba *gojieba.Jieba
}

func NewExtractor() *Extractor {
	return &Extractor{jieba: gojieba.NewJieba()}
}

func (e *Extractor) Free() {
	e.jieba.Free()
}

// Parse 返回全部词以及地点词、名词、英文词
func (e *Extractor) Parse(text string) (allWords, placeWords, nameWords []string) {
	defer utils.MetricTimeCost("分词解析")()
	allWords = e.jieba.Tag(text)
	for _, word := range allWords {
		i := strings.LastIndex(word, "/")
		if i <= 0 {
			continue
		}
		w, pos := strings.TrimSpace(word[:i]), word[i+1:]
		if w == "" {
			continue
		}
		switch pos {
		case "ns":
			placeWords = append(placeWords, w)
		case "n", "nz", "eng":
			nameWords = append(nameWords, strings.ToLower(w))
		}
	}
	return
}

// Tags 地点优先, 去重
func (e *Extractor) Tags(text string) []string {
	_, places, names := e.Parse(text)
	tags := []string{}
	for _, w := range append(places, names...) {
		if len(tags) >= maxTags {
			break
		}
		if !utils.IfWordInSlice(w, tags) {
			tags = append(tags, w)
		}
	}
	return tags
}
