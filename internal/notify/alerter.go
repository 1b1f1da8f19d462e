package notify

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// TelegramAlerter 运营报警出口：终态冲突、重试耗尽、验签失败等
// 全部推到值班群。ChatID 取自环境变量，未配置时降级为仅日志
type TelegramAlerter struct {
	ChatID string
}

func NewTelegramAlerter() *TelegramAlerter {
	return &TelegramAlerter{ChatID: os.Getenv("TELEGRAM_CHAT_ID")}
}

func (a *TelegramAlerter) Alert(level, title, detail string) {
	if a.ChatID == "" {
		return
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*[%s] %s*\n", escapeMarkdown(level), escapeMarkdown(title)))
	sb.WriteString(fmt.Sprintf("*时间:* %s\n", time.Now().Format("2006-01-02 15:04:05")))
	if detail != "" {
		sb.WriteString(fmt.Sprintf("`%s`\n", escapeMarkdown(detail)))
	}
	NotifySendMsgToTG(a.ChatID, sb.String())
}

// escapeMarkdown 转义 Telegram Markdown 特殊字符
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"`", "\\`",
	)
	return replacer.Replace(s)
}
