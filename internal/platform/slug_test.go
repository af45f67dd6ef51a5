package platform

import "testing"

func TestNormalizeSlug(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"My Pack", "my_pack"},
		{"Cats&Dogs!!", "cats_dogs"},
		{"__already__ok__", "already_ok"},
		{"ПриветMix", "mix"},
		{"plain", "plain"},
		{"A  B   C", "a_b_c"},
	}
	for _, c := range cases {
		if got := NormalizeSlug(c.in); got != c.want {
			t.Errorf("NormalizeSlug(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFreeSlug(t *testing.T) {
	if got := FreeSlug("my_pack", "PackBot"); got != "my_pack_by_packbot" {
		t.Fatalf("FreeSlug = %q", got)
	}
}

func TestParsePackLink(t *testing.T) {
	slug, sticker, ok := ParsePackLink("https://t.me/addstickers/my_pack_by_packbot")
	if !ok || !sticker || slug != "my_pack_by_packbot" {
		t.Fatalf("sticker link parse = %q %v %v", slug, sticker, ok)
	}

	slug, sticker, ok = ParsePackLink("t.me/addemoji/smiles")
	if !ok || sticker || slug != "smiles" {
		t.Fatalf("emoji link parse = %q %v %v", slug, sticker, ok)
	}

	if _, _, ok := ParsePackLink("https://example.com/addstickers/x"); ok {
		t.Fatal("foreign host accepted")
	}
	if _, _, ok := ParsePackLink("just text"); ok {
		t.Fatal("plain text accepted")
	}
}

func TestBuildPackLink(t *testing.T) {
	if got := BuildPackLink("s1", true); got != "https://t.me/addstickers/s1" {
		t.Fatalf("sticker link = %q", got)
	}
	if got := BuildPackLink("e1", false); got != "https://t.me/addemoji/e1" {
		t.Fatalf("emoji link = %q", got)
	}
}
