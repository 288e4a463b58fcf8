package pipeline

import "strings"

// Checker - фильтр безопасности. Возвращает сработавшее правило.
type Checker interface {
	Check(text string) (rule string, flagged bool)
}

var (
	jailbreakVerbs   = []string{"ignore", "forget", "disregard", "bypass", "override", "pretend", "act as"}
	jailbreakTargets = []string{"instruction", "rule", "previous", "system"}
)

// KeywordGuard ловит попытки подмены инструкций и термины из стоп-листа
type KeywordGuard struct {
	blocklist []string
}

func NewKeywordGuard(blocklist []string) *KeywordGuard {
	terms := make([]string, 0, len(blocklist))
	for _, t := range blocklist {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}
	return &KeywordGuard{blocklist: terms}
}

func (g *KeywordGuard) Check(text string) (string, bool) {
	lower := strings.ToLower(text)
	if containsAny(lower, jailbreakVerbs) && containsAny(lower, jailbreakTargets) {
		return "prompt_injection", true
	}
	for _, term := range g.blocklist {
		if strings.Contains(lower, term) {
			return "blocklist:" + term, true
		}
	}
	return "", false
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
