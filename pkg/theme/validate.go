package theme

import (
	"errors"
	"fmt"
	"strings"

	"orionos/pkg/domain"
)

var ErrInvalidToken = errors.New("invalid theme entry")

// Validate checks a token set before it is stored on a flow.
func Validate(tokens []domain.Token, fonts []domain.Font, assets []domain.Asset) error {
	seen := make(map[string]struct{}, len(tokens))
	for i, t := range tokens {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return fmt.Errorf("%w: token %d has no name", ErrInvalidToken, i)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: duplicate token %q", ErrInvalidToken, name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(t.Value) == "" {
			return fmt.Errorf("%w: token %q has no value", ErrInvalidToken, name)
		}
		switch t.Category {
		case domain.TokenColor, domain.TokenShadow, domain.TokenBorder, domain.TokenBlur, domain.TokenSpacing:
		default:
			return fmt.Errorf("%w: token %q has unknown category %q", ErrInvalidToken, name, t.Category)
		}
	}

	fontNames := make(map[string]struct{}, len(fonts))
	for i, f := range fonts {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return fmt.Errorf("%w: font %d has no name", ErrInvalidToken, i)
		}
		if _, ok := fontNames[name]; ok {
			return fmt.Errorf("%w: duplicate font %q", ErrInvalidToken, name)
		}
		fontNames[name] = struct{}{}
		if f.Category != domain.FontPrimary && f.Category != domain.FontSecondary {
			return fmt.Errorf("%w: font %q has unknown category %q", ErrInvalidToken, name, f.Category)
		}
	}

	assetNames := make(map[string]struct{}, len(assets))
	for i, a := range assets {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return fmt.Errorf("%w: asset %d has no name", ErrInvalidToken, i)
		}
		if _, ok := assetNames[name]; ok {
			return fmt.Errorf("%w: duplicate asset %q", ErrInvalidToken, name)
		}
		assetNames[name] = struct{}{}
		if a.Category != domain.AssetWallpaper && a.Category != domain.AssetIcon {
			return fmt.Errorf("%w: asset %q has unknown category %q", ErrInvalidToken, name, a.Category)
		}
	}
	return nil
}
