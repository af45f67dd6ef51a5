// Package render implements the adaptive-emoji pipeline: it decides font,
// background, target geometry, and output format, and delegates the actual
// encoding to an external codec service.
package render

import (
	"context"
	"strings"
	"time"

	"log/slog"

	"github.com/m3rciful/packbot/core/logger"
	"github.com/m3rciful/packbot/internal/domain"
	"github.com/m3rciful/packbot/internal/models"
)

// InputKind identifies what the user supplied.
type InputKind string

const (
	InputEmoji   InputKind = "emoji"
	InputSticker InputKind = "sticker"
	InputPhoto   InputKind = "photo"
	InputText    InputKind = "text"
)

// BackgroundMode selects how text is composed over the canvas.
type BackgroundMode string

const (
	BackgroundNone            BackgroundMode = "none"
	BackgroundHalfTransparent BackgroundMode = "half_transparent"
	BackgroundFillOnly        BackgroundMode = "fill_only"
)

// BackgroundModes lists the selectable modes in presentation order.
func BackgroundModes() []BackgroundMode {
	return []BackgroundMode{BackgroundNone, BackgroundHalfTransparent, BackgroundFillOnly}
}

// ParseBackground maps a callback payload back to a mode.
func ParseBackground(raw string) (BackgroundMode, bool) {
	switch BackgroundMode(raw) {
	case BackgroundNone, BackgroundHalfTransparent, BackgroundFillOnly:
		return BackgroundMode(raw), true
	}
	return "", false
}

// Input is one render request source.
type Input struct {
	Kind InputKind
	// ContentRef is the platform file reference for emoji/sticker/photo input.
	ContentRef string
	// Text is the joined multi-line text for text input.
	Text     string
	Animated bool
}

// Options carry the user's choices plus the target pack geometry.
type Options struct {
	Font       Font
	Background BackgroundMode
	TargetKind models.PackKind
	Width      int
	Height     int
}

// Asset output format names.
const (
	FormatStatic   = "static"
	FormatAnimated = "animated"
	FormatVideo    = "video"
)

// Asset is a finished, encoded result held by reference.
type Asset struct {
	Ref      string
	Format   string
	Animated bool
}

// Codec is the external rendering/encoding collaborator.
type Codec interface {
	// SupportsTransparency reports whether half-transparent backgrounds are
	// feasible on this codec.
	SupportsTransparency(ctx context.Context) bool
	Render(ctx context.Context, in Input, opts Options) (Asset, error)
}

const (
	maxTextRunes = 64
	maxTextLines = 8
)

// Pipeline applies the decision logic and calls the codec.
type Pipeline struct {
	codec Codec
}

// NewPipeline builds a pipeline over the given codec.
func NewPipeline(codec Codec) *Pipeline {
	return &Pipeline{codec: codec}
}

// targetSize returns the canvas for a pack kind. Custom emoji are 100x100,
// stickers 512x512 on the platform.
func targetSize(kind models.PackKind) (int, int) {
	if kind == models.PackKindSticker {
		return 512, 512
	}
	return 100, 100
}

// kindAllowsAnimated reports whether the pack kind accepts animated output.
// Adaptive packs hold static renders only.
func kindAllowsAnimated(kind models.PackKind) bool {
	return kind == models.PackKindEmoji || kind == models.PackKindSticker
}

// ValidateText checks collected text input before font selection.
func ValidateText(lines []string) error {
	if len(lines) == 0 {
		return domain.Wrap(domain.ErrValidation, errEmptyText)
	}
	if len(lines) > maxTextLines {
		return domain.Wrap(domain.ErrValidation, errTooManyLines)
	}
	joined := strings.Join(lines, "\n")
	if strings.TrimSpace(joined) == "" {
		return domain.Wrap(domain.ErrValidation, errEmptyText)
	}
	if len([]rune(joined)) > maxTextRunes {
		return domain.Wrap(domain.ErrValidation, errTextTooLong)
	}
	return nil
}

// ValidateBackground checks codec feasibility for the requested mode.
// An infeasible half-transparent background is reported, not a hard cancel:
// the flow returns the user to background selection.
func (p *Pipeline) ValidateBackground(ctx context.Context, mode BackgroundMode) error {
	switch mode {
	case BackgroundNone, BackgroundFillOnly:
		return nil
	case BackgroundHalfTransparent:
		if !p.codec.SupportsTransparency(ctx) {
			return domain.ErrUnsupportedBackground
		}
		return nil
	}
	return domain.ErrValidation
}

// Render resolves geometry and format, invokes the codec, and clamps the
// animated flag: animated output is emitted only when the input was animated
// and the target pack kind allows it.
func (p *Pipeline) Render(ctx context.Context, in Input, opts Options) (Asset, error) {
	start := time.Now()

	if in.Kind == InputText {
		if err := ValidateText(strings.Split(in.Text, "\n")); err != nil {
			return Asset{}, err
		}
		if err := p.ValidateBackground(ctx, opts.Background); err != nil {
			return Asset{}, err
		}
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = targetSize(opts.TargetKind)
	}

	asset, err := p.codec.Render(ctx, in, opts)
	if err != nil {
		return Asset{}, domain.Wrap(domain.ErrPlatformFailure, err)
	}

	if !in.Animated || !kindAllowsAnimated(opts.TargetKind) {
		asset.Animated = false
		if asset.Format != FormatStatic {
			asset.Format = FormatStatic
		}
	}

	logger.SVCRender.LogAttrs(ctx, slog.LevelDebug, "render.done",
		slog.String("event", "render.done"),
		slog.String("kind", string(in.Kind)),
		slog.String("bg", string(opts.Background)),
		slog.String("font", opts.Font.Name),
		slog.Bool("animated", asset.Animated),
		slog.Duration("duration", logger.Took(start)),
	)
	return asset, nil
}
