package app

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/packbot/core/config"
	coredatabase "github.com/m3rciful/packbot/core/database"
	"github.com/m3rciful/packbot/internal/policy"
)

// AppConfig carries the bot-specific settings on top of the core sections.
type AppConfig struct {
	// OwnerID is the single privileged account for admin, broadcast, and the
	// owner-gated purchase flows.
	OwnerID int64 `yaml:"owner_id" envconfig:"APP_OWNER_ID"`

	// FreePackUses is the free pack allocation granted on first contact.
	FreePackUses int `yaml:"free_pack_uses" envconfig:"APP_FREE_PACK_USES"`

	// FlowTTLMinutes expires abandoned flows lazily; 0 keeps them forever.
	FlowTTLMinutes int `yaml:"flow_ttl_minutes" envconfig:"APP_FLOW_TTL_MINUTES"`

	// UpgradeOpenFlows applies a /bpack purchase to a creation flow that was
	// already open when the payment settled.
	UpgradeOpenFlows bool `yaml:"upgrade_open_flows" envconfig:"APP_UPGRADE_OPEN_FLOWS"`

	// OnlyPrivateChats drops updates from groups and channels.
	OnlyPrivateChats bool `yaml:"only_private_chats" envconfig:"APP_ONLY_PRIVATE_CHATS"`

	BackupDir   string `yaml:"backup_dir" envconfig:"APP_BACKUP_DIR"`
	RendererURL string `yaml:"renderer_url" envconfig:"APP_RENDERER_URL"`

	Limits LimitsConfig `yaml:"limits"`
	Prices PricesConfig `yaml:"prices"`
}

// LimitsConfig mirrors the limit policy knobs.
type LimitsConfig struct {
	FreeMaxEmojis   int `yaml:"free_max_emojis" envconfig:"APP_FREE_MAX_EMOJIS"`
	FreeMaxStickers int `yaml:"free_max_stickers" envconfig:"APP_FREE_MAX_STICKERS"`
	PaidMaxItems    int `yaml:"paid_max_items" envconfig:"APP_PAID_MAX_ITEMS"`
	FreeNameMin     int `yaml:"free_name_min" envconfig:"APP_FREE_NAME_MIN"`
	FreeNameMax     int `yaml:"free_name_max" envconfig:"APP_FREE_NAME_MAX"`
	PaidNameMin     int `yaml:"paid_name_min" envconfig:"APP_PAID_NAME_MIN"`
	PaidNameMax     int `yaml:"paid_name_max" envconfig:"APP_PAID_NAME_MAX"`
}

// PricesConfig holds Stars (XTR) prices per purchase purpose.
type PricesConfig struct {
	BuyEmojiPack   int `yaml:"bpack_emoji" envconfig:"APP_PRICE_BPACK_EMOJI"`
	BuyStickerPack int `yaml:"bpack_sticker" envconfig:"APP_PRICE_BPACK_STICKER"`
	AdaptivePack   int `yaml:"apack" envconfig:"APP_PRICE_APACK"`
	Duplicate      int `yaml:"duplicate" envconfig:"APP_PRICE_DUPLICATE"`
}

// Config aggregates core, database, and app sections.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
	App      AppConfig           `yaml:"app"`
}

// CoreConfig exposes the embedded core configuration to the generic runner.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Core }

// Limits converts the config section into the policy value type.
func (c *Config) Limits() policy.Limits {
	return policy.Limits{
		FreeMaxEmojis:   c.App.Limits.FreeMaxEmojis,
		FreeMaxStickers: c.App.Limits.FreeMaxStickers,
		PaidMaxItems:    c.App.Limits.PaidMaxItems,
		FreeNameMin:     c.App.Limits.FreeNameMin,
		FreeNameMax:     c.App.Limits.FreeNameMax,
		PaidNameMin:     c.App.Limits.PaidNameMin,
		PaidNameMax:     c.App.Limits.PaidNameMax,
	}
}

// Load reads the YAML config, applies env overrides, and fills defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if cfg.App.OwnerID == 0 {
		cfg.App.OwnerID = cfg.Core.Telegram.AdminID
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	l := &cfg.App.Limits
	if l.FreeMaxEmojis == 0 {
		l.FreeMaxEmojis = 40
	}
	if l.FreeMaxStickers == 0 {
		l.FreeMaxStickers = 30
	}
	if l.PaidMaxItems == 0 {
		l.PaidMaxItems = 120
	}
	if l.FreeNameMin == 0 {
		l.FreeNameMin = 4
	}
	if l.FreeNameMax == 0 {
		l.FreeNameMax = 12
	}
	if l.PaidNameMin == 0 {
		l.PaidNameMin = 1
	}
	if l.PaidNameMax == 0 {
		l.PaidNameMax = 32
	}

	p := &cfg.App.Prices
	if p.BuyEmojiPack == 0 {
		p.BuyEmojiPack = 35
	}
	if p.BuyStickerPack == 0 {
		p.BuyStickerPack = 25
	}
	if p.AdaptivePack == 0 {
		p.AdaptivePack = 100
	}
	if p.Duplicate == 0 {
		p.Duplicate = 30
	}

	if cfg.App.FreePackUses == 0 {
		cfg.App.FreePackUses = 2
	}
	if cfg.App.FlowTTLMinutes == 0 {
		cfg.App.FlowTTLMinutes = 360
	}
}
