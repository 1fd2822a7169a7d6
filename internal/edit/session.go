package edit

import (
	"errors"
	"fmt"

	"chat-widget/internal/render"
)

var (
	// ErrNotRendered is returned when editing an id the view does not show.
	ErrNotRendered = errors.New("message is not rendered")
	// ErrNoPopup is returned by Save when no popup is open.
	ErrNoPopup = errors.New("no edit popup is open")
)

// Session manages the single inline-edit popup of one client view.
// It is not safe for concurrent use.
type Session struct {
	renderer *render.Renderer
	activeID string
	open     bool
}

// NewSession creates a Session drawing on renderer.
func NewSession(renderer *render.Renderer) *Session {
	return &Session{renderer: renderer}
}

// Open shows the popup for id, pre-filled with its displayed text. Opening
// the id that is already open does nothing; opening another id replaces the
// open popup.
func (s *Session) Open(id string) error {
	if s.open && s.activeID == id {
		return nil
	}
	text, ok := s.renderer.Text(id)
	if !ok {
		return fmt.Errorf("edit %s: %w", id, ErrNotRendered)
	}
	if s.open {
		if err := s.Close(); err != nil {
			return err
		}
	}
	if err := s.renderer.Popup(id, text); err != nil {
		return err
	}
	s.activeID = id
	s.open = true
	return nil
}

// Close removes the popup without saving. Closing with no popup open is a no-op.
func (s *Session) Close() error {
	if !s.open {
		return nil
	}
	s.open = false
	s.activeID = ""
	return s.renderer.ClosePopup()
}

// CloseIfActive closes the popup when it is bound to id.
func (s *Session) CloseIfActive(id string) error {
	if s.open && s.activeID == id {
		return s.Close()
	}
	return nil
}

// Save overwrites the displayed text of the open message with text and closes
// the popup. It returns the id the text belongs to so the caller can persist it.
func (s *Session) Save(text string) (string, error) {
	if !s.open {
		return "", ErrNoPopup
	}
	id := s.activeID
	if _, err := s.renderer.SetText(id, text); err != nil {
		return "", err
	}
	if err := s.Close(); err != nil {
		return id, err
	}
	return id, nil
}

// Active returns the id the popup is bound to.
func (s *Session) Active() (string, bool) {
	return s.activeID, s.open
}
