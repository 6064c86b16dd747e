// Package window holds the persisted window state machine. Functions take and
// return domain.AppState values; on error the input is returned unchanged.
package window

import (
	"errors"
	"fmt"
	"math"

	"orionos/pkg/domain"
)

var (
	ErrInvalidTransition = errors.New("invalid window transition")
	ErrInvalidGeometry   = errors.New("invalid window geometry")
	ErrMaximized         = errors.New("window is maximized")
)

// CascadeStep is the offset between windows of the same app.
const CascadeStep = 24.0

type State int

const (
	Closed State = iota
	Normal
	Minimized
	Maximized
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Normal:
		return "normal"
	case Minimized:
		return "minimized"
	case Maximized:
		return "maximized"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StateOf derives the machine state from the stored flags.
func StateOf(s domain.AppState) State {
	switch {
	case !s.IsOpen:
		return Closed
	case s.IsMinimized:
		return Minimized
	case s.IsMaximized:
		return Maximized
	default:
		return Normal
	}
}

// Flags is a partial flag update; nil fields are left as they are.
type Flags struct {
	IsOpen      *bool `json:"isOpen,omitempty"`
	IsMinimized *bool `json:"isMinimized,omitempty"`
	IsMaximized *bool `json:"isMaximized,omitempty"`
}

func (f Flags) Empty() bool {
	return f.IsOpen == nil && f.IsMinimized == nil && f.IsMaximized == nil
}

func ValidateGeometry(pos domain.Position, size domain.Size) error {
	for _, v := range []float64{pos.X, pos.Y, size.Width, size.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: coordinates must be finite", ErrInvalidGeometry)
		}
	}
	if size.Width <= 0 || size.Height <= 0 {
		return fmt.Errorf("%w: size must be positive", ErrInvalidGeometry)
	}
	return nil
}

// Open moves a window to the open state and clears minimization.
// A maximized window stays maximized.
func Open(s domain.AppState) domain.AppState {
	s.IsOpen = true
	s.IsMinimized = false
	return s
}

// Close marks the window closed. A maximized window gets its restore
// geometry back so the next open starts from the remembered place.
func Close(s domain.AppState) domain.AppState {
	if s.IsMaximized && s.Restore != nil {
		s.Position = s.Restore.Position
		s.Size = s.Restore.Size
	}
	s.Restore = nil
	s.IsOpen = false
	s.IsMinimized = false
	s.IsMaximized = false
	return s
}

// SetGeometry writes a new position and size. Writes are refused while the
// window is maximized so the restore geometry is not lost.
func SetGeometry(s domain.AppState, pos domain.Position, size domain.Size) (domain.AppState, error) {
	if err := ValidateGeometry(pos, size); err != nil {
		return s, err
	}
	if s.IsMaximized {
		return s, ErrMaximized
	}
	s.Position = pos
	s.Size = size
	return s, nil
}

// ApplyFlags runs a flag update through the state machine.
func ApplyFlags(s domain.AppState, f Flags) (domain.AppState, error) {
	orig := s
	if isTrue(f.IsMinimized) && isTrue(f.IsMaximized) {
		return orig, fmt.Errorf("%w: minimized and maximized are exclusive", ErrInvalidTransition)
	}

	if f.IsOpen != nil {
		if *f.IsOpen {
			if !s.IsOpen {
				s = Open(s)
			}
		} else {
			s = Close(s)
		}
	}

	if !s.IsOpen && (isTrue(f.IsMinimized) || isTrue(f.IsMaximized)) {
		return orig, fmt.Errorf("%w: window is closed", ErrInvalidTransition)
	}

	// unsets before sets so {isMaximized:false, isMinimized:true} is a valid move
	if isFalse(f.IsMinimized) {
		s.IsMinimized = false
	}
	if isFalse(f.IsMaximized) && s.IsMaximized {
		if s.Restore != nil {
			s.Position = s.Restore.Position
			s.Size = s.Restore.Size
		}
		s.Restore = nil
		s.IsMaximized = false
	}

	if isTrue(f.IsMinimized) {
		if s.IsMaximized {
			return orig, fmt.Errorf("%w: window is maximized", ErrInvalidTransition)
		}
		s.IsMinimized = true
	}
	if isTrue(f.IsMaximized) && !s.IsMaximized {
		if s.IsMinimized {
			return orig, fmt.Errorf("%w: window is minimized", ErrInvalidTransition)
		}
		s.Restore = &domain.Geometry{Position: s.Position, Size: s.Size}
		s.IsMaximized = true
	}
	return s, nil
}

// CascadePosition returns the first point on the diagonal from base that no
// occupied window sits on exactly.
func CascadePosition(base domain.Position, occupied []domain.Position) domain.Position {
	taken := make(map[domain.Position]struct{}, len(occupied))
	for _, p := range occupied {
		taken[p] = struct{}{}
	}
	for i := 0; i <= len(occupied); i++ {
		candidate := domain.Position{
			X: base.X + float64(i)*CascadeStep,
			Y: base.Y + float64(i)*CascadeStep,
		}
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
	// unreachable: len(occupied)+1 candidates cannot all be taken
	return base
}

func isTrue(b *bool) bool  { return b != nil && *b }
func isFalse(b *bool) bool { return b != nil && !*b }
