package domain

import "strings"

// NormalizeBrandName приводит имя бренда к каноническому ключу:
// нижний регистр, остаются только символы [a-z0-9]. Функция идемпотентна.
func NormalizeBrandName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeDomain приводит домен к каноническому ключу:
// нижний регистр, обрезка пробелов, удаление ведущего "www.". Функция идемпотентна.
func NormalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	return strings.TrimPrefix(domain, "www.")
}
