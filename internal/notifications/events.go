package notifications

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"fulfill/internal/fulfillment"
)

// Event identifies a notification type.
type Event string

const (
	EventLoginFailure   Event = "login_failure"
	EventSystemError    Event = "system_error"
	EventProcessFailure Event = "process_failure"
	EventRunSummary     Event = "run_summary"
	EventTest           Event = "test"
)

// Payload carries event fields. Recognized keys per event:
//
//	login_failure:   system, username, reason
//	system_error:    error, context (map[string]string)
//	process_failure: process, sn, error, success, failed, total
//	run_summary:     duration (time.Duration), categories ([]fulfillment.CategoryStats)
type Payload map[string]any

const timeLayout = "2006-01-02 15:04:05"

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

func (p Payload) text(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (p Payload) number(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func formatMessage(event Event, payload Payload, prefix string, now time.Time) (message, bool) {
	if payload == nil {
		payload = Payload{}
	}
	stamp := now.Format(timeLayout)
	switch event {
	case EventLoginFailure:
		system := fallback(payload.text("system"), "unknown")
		lines := []string{
			"## ⚠️ 系统登录失败",
			"",
			"**告警时间：** " + stamp,
			"**目标系统：** " + system,
		}
		if user := payload.text("username"); user != "" {
			lines = append(lines, "**登录账号：** `"+user+"`")
		}
		lines = append(lines,
			"",
			"### 失败原因",
			"> "+fallback(payload.text("reason"), "unknown"),
			"",
			"---",
			"💡 **建议操作：** 检查账号密码与验证码服务，确认目标系统是否维护中",
		)
		return message{
			title:    fmt.Sprintf("🔐 %s - 登录失败", prefix),
			body:     strings.Join(lines, "\n"),
			tags:     []string{"fulfill", "login", "alert"},
			priority: "high",
		}, true

	case EventSystemError:
		lines := []string{
			"## 🔥 系统异常告警",
			"",
			"**异常时间：** " + stamp,
			"",
			"### 错误信息",
			"> " + fallback(payload.text("error"), "unknown"),
			"",
		}
		lines = append(lines, contextLines(payload["context"])...)
		lines = append(lines, "---", "⚠️ **请检查运行日志**")
		return message{
			title:    fmt.Sprintf("🚨 %s - 系统异常", prefix),
			body:     strings.Join(lines, "\n"),
			tags:     []string{"fulfill", "error", "alert"},
			priority: "high",
		}, true

	case EventProcessFailure:
		process := fallback(payload.text("process"), "处理")
		lines := []string{
			fmt.Sprintf("## ❌ %s处理异常", process),
			"",
			"**异常时间：** " + stamp,
		}
		if sn := payload.text("sn"); sn != "" {
			lines = append(lines, "**SN 编码：** `"+sn+"`")
		}
		lines = append(lines,
			"",
			"### 错误信息",
			"> "+fallback(payload.text("error"), "unknown"),
			"",
		)
		if _, ok := payload["total"]; ok {
			lines = append(lines,
				"### 处理统计",
				"",
				fmt.Sprintf("- 成功：%d 条", payload.number("success")),
				fmt.Sprintf("- 失败：%d 条", payload.number("failed")),
				fmt.Sprintf("- 总计：%d 条", payload.number("total")),
				"",
			)
		}
		return message{
			title: fmt.Sprintf("📦 %s - %s失败", prefix, process),
			body:  strings.Join(lines, "\n"),
			tags:  []string{"fulfill", "process", "failed"},
		}, true

	case EventRunSummary:
		duration, _ := payload["duration"].(time.Duration)
		lines := []string{
			"## ✅ 自动化处理完成",
			"",
			"**执行时间：** " + stamp,
			fmt.Sprintf("**总耗时：** %.1f 秒", duration.Seconds()),
			"",
		}
		stats, _ := payload["categories"].([]fulfillment.CategoryStats)
		failed := false
		for _, s := range stats {
			lines = append(lines,
				fmt.Sprintf("### %s处理结果", s.Category.Label()),
				fmt.Sprintf("- 拣货成功：**%d** / %d 条", s.Picked, s.Items),
				fmt.Sprintf("- 发货成功：**%d** 条（自提 %d，外发 %d）", s.Shipped, s.SelfPickup, s.Carrier),
			)
			if s.PickFailed > 0 || s.ShipFailed > 0 {
				lines = append(lines, fmt.Sprintf("- 失败：拣货 %d，发货 %d，待核对出库单 %d", s.PickFailed, s.ShipFailed, s.Orphaned))
			}
			if s.Err != nil {
				lines = append(lines, "- 错误："+s.Err.Error())
			}
			lines = append(lines, "")
			failed = failed || s.Failed()
		}
		lines = append(lines, "---")
		if failed {
			lines = append(lines, "⚠️ 部分流程未完成，请查看日志")
		} else {
			lines = append(lines, "🎉 所有流程已正常完成")
		}
		return message{
			title: fmt.Sprintf("📊 %s - 处理完成汇总", prefix),
			body:  strings.Join(lines, "\n"),
			tags:  []string{"fulfill", "run", "summary"},
		}, true

	case EventTest:
		return message{
			title:    fmt.Sprintf("🧪 %s - 通知测试", prefix),
			body:     "通知通道工作正常\n\n**发送时间：** " + stamp,
			tags:     []string{"fulfill", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func contextLines(raw any) []string {
	ctx, ok := raw.(map[string]string)
	if !ok || len(ctx) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ctx))
	for key := range ctx {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	lines := []string{"### 上下文信息", ""}
	for _, key := range keys {
		lines = append(lines, fmt.Sprintf("- **%s：** %s", key, ctx[key]))
	}
	return append(lines, "")
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
