package domain

import "testing"

func TestParsePlatformFallback(t *testing.T) {
	if got := ParsePlatform("ChatGPT"); got != PlatformChatGPT {
		t.Fatalf("ожидали chatgpt, получили %s", got)
	}
	if got := ParsePlatform("midjourney"); got != PlatformOther {
		t.Fatalf("неизвестная площадка должна сводиться к other, получили %s", got)
	}
	if got := ParsePlatform(""); got != PlatformOther {
		t.Fatalf("пустая площадка должна сводиться к other, получили %s", got)
	}
}

func TestParseMessageRoleFallback(t *testing.T) {
	if got := ParseMessageRole("ASSISTANT"); got != RoleAssistant {
		t.Fatalf("ожидали assistant, получили %s", got)
	}
	if got := ParseMessageRole("moderator"); got != RoleUser {
		t.Fatalf("неизвестная роль должна сводиться к user, получили %s", got)
	}
}

func TestCandidateNamesOrder(t *testing.T) {
	brand := Brand{Name: "Acme", Aliases: []string{"Acme Corp", "ACME Inc"}}
	names := brand.CandidateNames()
	if len(names) != 3 {
		t.Fatalf("ожидали 3 имени, получили %d", len(names))
	}
	if names[0] != "Acme" {
		t.Fatalf("имя бренда должно идти первым")
	}
}
