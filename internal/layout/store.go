// Package layout persists the three-panel console layout.
package layout

import (
	"encoding/json"
	"fmt"
)

const (
	MinWidth  = 240
	MinHeight = 220
)

// Rect is a panel rectangle in screen pixels.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Moved translates the rectangle; position is unconstrained.
func (r Rect) Moved(dx, dy float64) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Resized grows or shrinks the rectangle, never below the minimum usable size.
func (r Rect) Resized(dw, dh float64) Rect {
	r.W = max(MinWidth, r.W+dw)
	r.H = max(MinHeight, r.H+dh)
	return r
}

// Layout is the persisted value: one rectangle per panel.
type Layout struct {
	Controls Rect `json:"controls"`
	Viewer   Rect `json:"viewer"`
	Right    Rect `json:"right"`
}

func Default() Layout {
	return Layout{
		Controls: Rect{X: 24, Y: 16, W: 280, H: 640},
		Viewer:   Rect{X: 320, Y: 16, W: 860, H: 640},
		Right:    Rect{X: 1200, Y: 16, W: 320, H: 640},
	}
}

// Storage is a named-key string store; fyne.Preferences satisfies it.
type Storage interface {
	String(key string) string
	SetString(key string, value string)
}

type Store struct {
	storage Storage
	key     string
}

func NewStore(storage Storage, key string) *Store {
	return &Store{storage: storage, key: key}
}

// Load returns nil when nothing is stored or the stored value is malformed.
func (s *Store) Load() *Layout {
	raw := s.storage.String(s.key)
	if raw == "" {
		return nil
	}

	var stored struct {
		Controls *Rect `json:"controls"`
		Viewer   *Rect `json:"viewer"`
		Right    *Rect `json:"right"`
	}
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil
	}
	if stored.Controls == nil || stored.Viewer == nil || stored.Right == nil {
		return nil
	}

	// Stored rects are raised to the minimum panel size.
	return &Layout{
		Controls: stored.Controls.Resized(0, 0),
		Viewer:   stored.Viewer.Resized(0, 0),
		Right:    stored.Right.Resized(0, 0),
	}
}

// Save overwrites the stored layout.
func (s *Store) Save(controls, viewer, right Rect) error {
	data, err := json.Marshal(Layout{Controls: controls, Viewer: viewer, Right: right})
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	s.storage.SetString(s.key, string(data))
	return nil
}
