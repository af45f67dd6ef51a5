package render

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m3rciful/packbot/internal/domain"
	"github.com/m3rciful/packbot/internal/models"
)

type fakeCodec struct {
	transparency bool
	lastInput    Input
	lastOpts     Options
	result       Asset
	err          error
}

func (f *fakeCodec) SupportsTransparency(context.Context) bool { return f.transparency }

func (f *fakeCodec) Render(_ context.Context, in Input, opts Options) (Asset, error) {
	f.lastInput = in
	f.lastOpts = opts
	if f.err != nil {
		return Asset{}, f.err
	}
	return f.result, nil
}

func TestValidateBackgroundFeasibility(t *testing.T) {
	ctx := context.Background()

	p := NewPipeline(&fakeCodec{transparency: false})
	err := p.ValidateBackground(ctx, BackgroundHalfTransparent)
	if !errors.Is(err, domain.ErrUnsupportedBackground) {
		t.Fatalf("half_transparent without codec support = %v, want unsupported_background", err)
	}
	if err := p.ValidateBackground(ctx, BackgroundNone); err != nil {
		t.Fatalf("none: %v", err)
	}
	if err := p.ValidateBackground(ctx, BackgroundFillOnly); err != nil {
		t.Fatalf("fill_only: %v", err)
	}

	p = NewPipeline(&fakeCodec{transparency: true})
	if err := p.ValidateBackground(ctx, BackgroundHalfTransparent); err != nil {
		t.Fatalf("half_transparent with codec support: %v", err)
	}

	if err := p.ValidateBackground(ctx, BackgroundMode("tiled")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown mode = %v, want validation_error", err)
	}
}

func TestRenderTextRejectsUnsupportedBackground(t *testing.T) {
	codec := &fakeCodec{transparency: false, result: Asset{Ref: "a", Format: FormatStatic}}
	p := NewPipeline(codec)

	_, err := p.Render(context.Background(),
		Input{Kind: InputText, Text: "hi"},
		Options{Background: BackgroundHalfTransparent, TargetKind: models.PackKindAdaptive},
	)
	if !errors.Is(err, domain.ErrUnsupportedBackground) {
		t.Fatalf("err = %v, want unsupported_background", err)
	}
	if codec.lastInput.Kind != "" {
		t.Fatal("codec must not be called when background is infeasible")
	}
}

func TestRenderDefaultsGeometryByKind(t *testing.T) {
	codec := &fakeCodec{result: Asset{Ref: "a", Format: FormatStatic}}
	p := NewPipeline(codec)

	if _, err := p.Render(context.Background(),
		Input{Kind: InputEmoji, ContentRef: "f1"},
		Options{TargetKind: models.PackKindEmoji},
	); err != nil {
		t.Fatalf("render: %v", err)
	}
	if codec.lastOpts.Width != 100 || codec.lastOpts.Height != 100 {
		t.Fatalf("emoji canvas = %dx%d, want 100x100", codec.lastOpts.Width, codec.lastOpts.Height)
	}

	if _, err := p.Render(context.Background(),
		Input{Kind: InputPhoto, ContentRef: "f2"},
		Options{TargetKind: models.PackKindSticker},
	); err != nil {
		t.Fatalf("render: %v", err)
	}
	if codec.lastOpts.Width != 512 || codec.lastOpts.Height != 512 {
		t.Fatalf("sticker canvas = %dx%d, want 512x512", codec.lastOpts.Width, codec.lastOpts.Height)
	}
}

func TestRenderClampsAnimatedOutput(t *testing.T) {
	// Codec claims an animated result, but the input was static.
	codec := &fakeCodec{result: Asset{Ref: "a", Format: FormatAnimated, Animated: true}}
	p := NewPipeline(codec)

	asset, err := p.Render(context.Background(),
		Input{Kind: InputPhoto, ContentRef: "f", Animated: false},
		Options{TargetKind: models.PackKindSticker},
	)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if asset.Animated || asset.Format != FormatStatic {
		t.Fatalf("static input produced %+v, want static", asset)
	}

	// Animated input into an adaptive pack is also forced static.
	codec.result = Asset{Ref: "b", Format: FormatAnimated, Animated: true}
	asset, err = p.Render(context.Background(),
		Input{Kind: InputEmoji, ContentRef: "f", Animated: true},
		Options{TargetKind: models.PackKindAdaptive},
	)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if asset.Animated {
		t.Fatalf("adaptive pack accepted animated output: %+v", asset)
	}

	// Animated input into an emoji pack keeps animation.
	codec.result = Asset{Ref: "c", Format: FormatAnimated, Animated: true}
	asset, err = p.Render(context.Background(),
		Input{Kind: InputEmoji, ContentRef: "f", Animated: true},
		Options{TargetKind: models.PackKindEmoji},
	)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !asset.Animated || asset.Format != FormatAnimated {
		t.Fatalf("animated emoji render = %+v, want animated", asset)
	}
}

func TestRenderWrapsCodecFailure(t *testing.T) {
	codec := &fakeCodec{err: errors.New("boom")}
	p := NewPipeline(codec)
	_, err := p.Render(context.Background(),
		Input{Kind: InputPhoto, ContentRef: "f"},
		Options{TargetKind: models.PackKindSticker},
	)
	if !errors.Is(err, domain.ErrPlatformFailure) {
		t.Fatalf("err = %v, want platform_failure", err)
	}
}

func TestValidateText(t *testing.T) {
	if err := ValidateText(nil); err == nil {
		t.Fatal("empty input accepted")
	}
	if err := ValidateText([]string{"   "}); err == nil {
		t.Fatal("blank input accepted")
	}
	if err := ValidateText([]string{"hello", "world"}); err != nil {
		t.Fatalf("two lines rejected: %v", err)
	}
	long := strings.Repeat("x", maxTextRunes+1)
	if err := ValidateText([]string{long}); err == nil {
		t.Fatal("over-long text accepted")
	}
	many := make([]string, maxTextLines+1)
	for i := range many {
		many[i] = "a"
	}
	if err := ValidateText(many); err == nil {
		t.Fatal("too many lines accepted")
	}
}

func TestFontTable(t *testing.T) {
	fonts := Fonts()
	if len(fonts) < 10 || len(fonts) > 20 {
		t.Fatalf("font set size = %d, want 10..20", len(fonts))
	}
	if _, ok := FontByIndex(-1); ok {
		t.Fatal("negative index resolved")
	}
	if _, ok := FontByIndex(len(fonts)); ok {
		t.Fatal("out-of-range index resolved")
	}
	f, ok := FontByIndex(0)
	if !ok || f.ID == "" {
		t.Fatalf("first font = %+v", f)
	}
}
