package theme

import "orionos/pkg/domain"

const (
	ZenithName        = "Zenith"
	ZenithDescription = "Default OrionOS design system"
)

// Zenith returns a fresh copy of the system flow seeded for every profile.
// Callers may mutate the returned slices.
func Zenith() (tokens []domain.Token, fonts []domain.Font, assets []domain.Asset) {
	tokens = []domain.Token{
		// backgrounds
		{Name: "underlying-bg", Value: "#292929", Category: domain.TokenColor, Description: "81% opacity background base"},
		{Name: "overlay-bg", Value: "#010203", Category: domain.TokenColor, Description: "69% opacity overlay background"},
		{Name: "border", Value: "#292929", Category: domain.TokenColor, Description: "81% opacity borders"},

		{Name: "black", Value: "#000000", Category: domain.TokenColor, Description: "Pure black"},
		{Name: "glass", Value: "#000000", Category: domain.TokenColor, Description: "30% opacity glass effect"},
		{Name: "white", Value: "#CCCCCC", Category: domain.TokenColor, Description: "69% opacity white"},

		// status
		{Name: "active", Value: "#28C840", Category: domain.TokenColor, Description: "Success/active state"},
		{Name: "warning", Value: "#FEBC2E", Category: domain.TokenColor, Description: "Warning state"},
		{Name: "error", Value: "#FF5F57", Category: domain.TokenColor, Description: "Error state"},

		{Name: "accent-lilac", Value: "#7B6CBD", Category: domain.TokenColor, Description: "Primary accent"},
		{Name: "accent-teal", Value: "#003431", Category: domain.TokenColor, Description: "Secondary accent"},

		{Name: "text-primary", Value: "#ABC4C3", Category: domain.TokenColor, Description: "Header text"},
		{Name: "text-secondary", Value: "#748393", Category: domain.TokenColor, Description: "Body text"},

		{Name: "window-shadow", Value: "0 8px 32px rgba(0, 0, 0, 0.25)", Category: domain.TokenShadow},
		{Name: "dock-shadow", Value: "0 4px 16px rgba(0, 0, 0, 0.15)", Category: domain.TokenShadow},

		{Name: "border-radius-sm", Value: "6px", Category: domain.TokenBorder},
		{Name: "border-radius-md", Value: "8px", Category: domain.TokenBorder},
		{Name: "border-radius-lg", Value: "12px", Category: domain.TokenBorder},

		{Name: "glass-blur", Value: "16px", Category: domain.TokenBlur},

		{Name: "spacing-xs", Value: "4px", Category: domain.TokenSpacing},
		{Name: "spacing-sm", Value: "8px", Category: domain.TokenSpacing},
		{Name: "spacing-md", Value: "16px", Category: domain.TokenSpacing},
		{Name: "spacing-lg", Value: "24px", Category: domain.TokenSpacing},
		{Name: "spacing-xl", Value: "32px", Category: domain.TokenSpacing},
	}
	fonts = []domain.Font{
		{Name: "Arial", URL: "/fonts/arial.woff2", Category: domain.FontPrimary, Variants: []string{"400", "500", "600", "700"}},
		{Name: "Inter", URL: "/fonts/inter.woff2", Category: domain.FontSecondary, Variants: []string{"400", "500", "600"}},
	}
	assets = []domain.Asset{
		{Name: "default-wallpaper", URL: "/assets/wallpapers/zenith-dark.jpg", Category: domain.AssetWallpaper},
		{Name: "finder-icon", URL: "/assets/icons/finder.svg", Category: domain.AssetIcon},
	}
	return tokens, fonts, assets
}
