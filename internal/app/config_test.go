package app

import "testing"

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	var cfg Config
	applyDefaults(&cfg)

	l := cfg.App.Limits
	if l.FreeMaxEmojis != 40 || l.FreeMaxStickers != 30 || l.PaidMaxItems != 120 {
		t.Fatalf("capacity defaults = %+v", l)
	}
	if l.FreeNameMin != 4 || l.FreeNameMax != 12 || l.PaidNameMin != 1 || l.PaidNameMax != 32 {
		t.Fatalf("name bound defaults = %+v", l)
	}
	p := cfg.App.Prices
	if p.BuyEmojiPack != 35 || p.BuyStickerPack != 25 || p.AdaptivePack != 100 || p.Duplicate != 30 {
		t.Fatalf("price defaults = %+v", p)
	}
	if cfg.App.FreePackUses != 2 {
		t.Fatalf("free_pack_uses default = %d, want 2", cfg.App.FreePackUses)
	}
	if cfg.App.FlowTTLMinutes != 360 {
		t.Fatalf("flow_ttl_minutes default = %d, want 360", cfg.App.FlowTTLMinutes)
	}
}

func TestApplyDefaultsKeepsConfiguredValues(t *testing.T) {
	var cfg Config
	cfg.App.Limits.FreeMaxEmojis = 10
	cfg.App.Prices.Duplicate = 99
	applyDefaults(&cfg)

	if cfg.App.Limits.FreeMaxEmojis != 10 {
		t.Fatal("configured limit was overwritten")
	}
	if cfg.App.Prices.Duplicate != 99 {
		t.Fatal("configured price was overwritten")
	}
}

func TestLimitsConversion(t *testing.T) {
	var cfg Config
	applyDefaults(&cfg)
	limits := cfg.Limits()

	if limits.FreeMaxEmojis != cfg.App.Limits.FreeMaxEmojis ||
		limits.PaidMaxItems != cfg.App.Limits.PaidMaxItems ||
		limits.PaidNameMax != cfg.App.Limits.PaidNameMax {
		t.Fatalf("policy limits = %+v, config = %+v", limits, cfg.App.Limits)
	}
}
