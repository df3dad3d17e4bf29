package telegram

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/xavierca1/kviz-leads/internal/usecase"
)

var fieldNames = map[string]string{
	"capital":    "Капитал для начала",
	"motivation": "Мотивация",
	"readiness":  "Готовность к старту",
}

var answerLabels = map[string]map[string]string{
	"capital": {
		"up-to-200": "До $200",
		"300-1000":  "От $300 до $1000",
		"over-1000": "От $1000 и больше",
	},
	"motivation": {
		"extra-income": "Хочу дополнительный доход",
		"change-job":   "Хочу сменить основную работу",
		"crypto":       "Хочу увеличить капитал и войти в крипторынок",
		"scale":        "Уже зарабатываю, хочу масштабировать",
	},
	"readiness": {
		"ready-now":    "Готов(а) сразу после общения",
		"ready-week":   "Готов стартовать на неделе",
		"need-details": "Сначала хочу разобраться подробнее",
		"not-sure":     "Не уверен(а), просто интересно",
	},
}

// utmLabels is ordered; the message lists tracking params in this order.
var utmLabels = []struct{ key, label string }{
	{"utm_source", "Source"},
	{"utm_medium", "Medium"},
	{"utm_campaign", "Campaign"},
	{"utm_term", "Term"},
	{"utm_content", "Content"},
	{"utm_id", "UTM ID"},
	{"utm_source_platform", "Source Platform"},
	{"gclid", "Google Click ID"},
	{"fbclid", "Facebook Click ID"},
	{"msclkid", "Microsoft Click ID"},
	{"ttclid", "TikTok Click ID"},
	{"yclid", "Yandex Click ID"},
	{"gbraid", "Google Brand ID"},
	{"wbraid", "Web Brand ID"},
	{"_ga", "Google Analytics"},
	{"mc_eid", "Mailchimp ID"},
}

var (
	phoneGrouped = regexp.MustCompile(`^(\+\d{1,4})(\d{2,3})(\d{3})(\d{2})(\d{2})$`)
	phoneCode    = regexp.MustCompile(`^(\+\d{1,4})(.+)$`)
)

// FormatLeadMessage renders the operator chat message for a lead.
func FormatLeadMessage(n usecase.LeadNotification) string {
	var b strings.Builder
	b.WriteString("🎯 Новый лид из квиза!\n\n")

	if n.Lead != nil {
		b.WriteString("👤 Контактные данные:\n")
		fmt.Fprintf(&b, "• Имя: %s\n", text(n.Lead["name"]))
		fmt.Fprintf(&b, "• Телефон: %s\n", FormatPhone(text(n.Lead["phone"])))
		if email := text(n.Lead["email"]); email != "" {
			fmt.Fprintf(&b, "• Email: %s\n", email)
		}

		var extra []string
		for k := range n.Lead {
			if k != "name" && k != "phone" && k != "email" {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		if len(extra) > 0 {
			b.WriteString("\n📋 Ответы на вопросы:\n")
			for _, k := range extra {
				fmt.Fprintf(&b, "• %s: %s\n", fieldName(k), answerLabel(k, text(n.Lead[k])))
			}
		}
	}

	if hasAnyValue(n.UTMParams) {
		b.WriteString("\n📊 UTM-метки:\n")
		for _, u := range utmLabels {
			if v := text(n.UTMParams[u.key]); v != "" {
				fmt.Fprintf(&b, "• %s: %s\n", u.label, v)
			}
		}
	}

	if n.UserData != nil {
		u := n.UserData
		b.WriteString("\n💻 Информация о пользователе:\n")
		realIP, ip := text(u["realIP"]), text(u["ip"])
		if realIP != "" {
			fmt.Fprintf(&b, "• Реальный IP: %s\n", realIP)
		}
		if ip != "" && ip != realIP {
			fmt.Fprintf(&b, "• Локальный IP: %s\n", ip)
		}
		writeIf(&b, "Язык", text(u["language"]))
		writeIf(&b, "Платформа", text(u["platform"]))
		if w, h := text(u["screenWidth"]), text(u["screenHeight"]); w != "" && h != "" && w != "0" && h != "0" {
			fmt.Fprintf(&b, "• Разрешение: %sx%s\n", w, h)
		}
		writeIf(&b, "Часовой пояс", text(u["timezone"]))
		writeIf(&b, "User Agent", text(u["userAgent"]))
		writeIf(&b, "Referrer", text(u["referrer"]))
		writeIf(&b, "Время", text(u["timestamp"]))
	}

	return b.String()
}

// FormatPhone regroups a phone for reading: "+41123456789" becomes
// "+41 12 345 67 89". Short or code-less numbers pass through.
func FormatPhone(phone string) string {
	clean := strings.Join(strings.Fields(phone), "")
	if len(clean) < 10 {
		return phone
	}
	if m := phoneGrouped.FindStringSubmatch(clean); m != nil {
		return strings.Join(m[1:], " ")
	}
	m := phoneCode.FindStringSubmatch(clean)
	if m == nil {
		return phone
	}

	rest := m[2]
	var groups []string
	for len(rest) > 3 {
		groups = append(groups, rest[:3])
		rest = rest[3:]
	}
	groups = append(groups, rest)
	return m[1] + " " + strings.Join(groups, " ")
}

func fieldName(key string) string {
	if name, ok := fieldNames[key]; ok {
		return name
	}
	return key
}

func answerLabel(key, value string) string {
	if label, ok := answerLabels[key][value]; ok {
		return label
	}
	return value
}

func writeIf(b *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(b, "• %s: %s\n", label, value)
	}
}

func hasAnyValue(m map[string]any) bool {
	for _, v := range m {
		if text(v) != "" {
			return true
		}
	}
	return false
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
		return "true"
	default:
		return fmt.Sprint(t)
	}
}
