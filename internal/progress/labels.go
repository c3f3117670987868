package progress

import (
	"golang.org/x/text/language"
)

// Labels holds the user-facing strings used in progress records and job
// error messages. Format templates take fmt verbs.
type Labels struct {
	ZeroTime  string // elapsed mark before telemetry arrives
	ZeroSpeed string // throughput when no bitrate is reported
	Computing string // ETA placeholder
	Done      string // time/speed/eta of an end event
	Failed    string // time/speed/eta of an error event

	MinutesSeconds string // ETA under one hour: minutes, seconds
	HoursMinutes   string // ETA of an hour or more: hours, minutes
	SpeedMbps      string // throughput in Mbps, one decimal

	EmptyPaths   string
	InputMissing string // %s = input path
	OutputDir    string // %s = output directory
	TimedOut     string // %s = deadline
	Cancelled    string
	ShuttingDown string
}

// Chinese is the default label set.
var Chinese = Labels{
	ZeroTime:       "00:00:00",
	ZeroSpeed:      "0 Mbps",
	Computing:      "计算中...",
	Done:           "完成",
	Failed:         "错误",
	MinutesSeconds: "%d分%d秒",
	HoursMinutes:   "%d小时%d分",
	SpeedMbps:      "%.1f Mbps",
	EmptyPaths:     "输入路径或输出路径为空",
	InputMissing:   "输入文件不存在: %s",
	OutputDir:      "无法创建输出目录: %s",
	TimedOut:       "转换超时 (%s)",
	Cancelled:      "转换已取消",
	ShuttingDown:   "服务正在关闭",
}

var English = Labels{
	ZeroTime:       "00:00:00",
	ZeroSpeed:      "0 Mbps",
	Computing:      "calculating...",
	Done:           "done",
	Failed:         "error",
	MinutesSeconds: "%dm%ds",
	HoursMinutes:   "%dh%dm",
	SpeedMbps:      "%.1f Mbps",
	EmptyPaths:     "input path or output path is empty",
	InputMissing:   "input file does not exist: %s",
	OutputDir:      "cannot create output directory: %s",
	TimedOut:       "conversion timed out (%s)",
	Cancelled:      "conversion cancelled",
	ShuttingDown:   "server is shutting down",
}

// Chinese is listed first so unmatched locales fall back to it.
var (
	supported = []language.Tag{language.Chinese, language.English}
	matcher   = language.NewMatcher(supported)
	byIndex   = []Labels{Chinese, English}
)

// LabelsFor returns the label set best matching a BCP 47 locale string
// such as "zh", "zh-CN" or "en-US".
func LabelsFor(locale string) Labels {
	_, idx := language.MatchStrings(matcher, locale)
	if idx < 0 || idx >= len(byIndex) {
		return Chinese
	}
	return byIndex[idx]
}
