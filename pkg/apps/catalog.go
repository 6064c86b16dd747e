package apps

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"orionos/pkg/domain"
)

var ErrInvalidDescriptor = errors.New("invalid app descriptor")

const (
	FlowAppName    = "flow"
	StellarAppName = "stellar"
)

// CoreApps lists the built-in apps in dock order.
func CoreApps() []domain.App {
	return []domain.App{
		{
			Name:        FlowAppName,
			DisplayName: "Flow",
			Description: "Design System Manager",
			IconURL:     "/apps/flow/icon.svg",
			IsSystem:    true,
			DefaultWindow: domain.WindowConfig{
				Width:     1200,
				Height:    800,
				Placement: "center",
			},
			Features: []domain.Capability{domain.CapFlowSystem, domain.CapRealtime, domain.CapCanvas},
		},
		{
			Name:        StellarAppName,
			DisplayName: "Stellar",
			Description: "File System Manager",
			IconURL:     "/apps/stellar/icon.svg",
			IsSystem:    true,
			DefaultWindow: domain.WindowConfig{
				Width:     900,
				Height:    600,
				Placement: "center",
			},
			Features: []domain.Capability{domain.CapFileSystem, domain.CapRealtime},
		},
	}
}

// ValidateDescriptor normalizes and checks an app before registration.
func ValidateDescriptor(app domain.App) (domain.App, error) {
	app.Name = strings.TrimSpace(app.Name)
	app.DisplayName = strings.TrimSpace(app.DisplayName)
	if app.Name == "" {
		return domain.App{}, fmt.Errorf("%w: name is required", ErrInvalidDescriptor)
	}
	if app.DisplayName == "" {
		app.DisplayName = app.Name
	}
	w, h := app.DefaultWindow.Width, app.DefaultWindow.Height
	if !finitePositive(w) || !finitePositive(h) {
		return domain.App{}, fmt.Errorf("%w: default window size must be positive", ErrInvalidDescriptor)
	}
	seen := make(map[domain.Capability]struct{}, len(app.Features))
	features := make([]domain.Capability, 0, len(app.Features))
	for _, f := range app.Features {
		if !KnownCapability(f) {
			return domain.App{}, fmt.Errorf("%w: unknown capability %q", ErrInvalidDescriptor, f)
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		features = append(features, f)
	}
	app.Features = features
	return app, nil
}

func KnownCapability(c domain.Capability) bool {
	switch c {
	case domain.CapMultiInstance, domain.CapRealtime, domain.CapCanvas, domain.CapFlowSystem, domain.CapFileSystem:
		return true
	}
	return false
}

func finitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
