package utils

import (
	"time"

	"github.com/apex/log"
)

func CheckError(err error, where string) {
	if err != nil {
		panic("[" + where + "]" + err.Error())
	}
}

// MetricTimeCost 用法: defer MetricTimeCost("name")()
func MetricTimeCost(funcName string) func() {
	start := time.Now()
	return func() {
		log.WithField("func", funcName).WithField("cost", time.Since(start).String()).Debug("耗时统计")
	}
}

func IfWordInSlice(word string, words []string) bool {
	for _, w := range words {
		if word == w {
			return true
		}
	}
	return false
}
