package utils

import (
	"time"
)

var (
	// ChinaLocation 中国时区 (UTC+8)
	ChinaLocation *time.Location
)

func init() {
	var err error
	ChinaLocation, err = time.LoadLocation("Asia/Shanghai")
	if err != nil {
		// 如果加载失败，使用固定偏移量 UTC+8
		ChinaLocation = time.FixedZone("CST", 8*60*60)
	}
}

// NowInChina 获取中国时区的当前时间
func NowInChina() time.Time {
	return time.Now().In(ChinaLocation)
}

// NowMillis 当前毫秒时间戳，文章的 created/updated 使用该精度
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// MillisToChinaTime 将毫秒时间戳转换为中国时区的时间
func MillisToChinaTime(ms int64) time.Time {
	return time.UnixMilli(ms).In(ChinaLocation)
}

// FormatMillis 毫秒时间戳格式化为 2006-01-02 15:04:05
func FormatMillis(ms int64) string {
	return MillisToChinaTime(ms).Format("2006-01-02 15:04:05")
}
