package ues

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
	"github.com/shrimpsizemoose/attendo/internal/models"
)

const (
	msgInvalidLabel = "Please enter a valid label."
	msgEventExists  = "This event already exists."
)

var ErrEventNotFound = errors.New("event not found")

// SessionLabeler resolves a session label; sessions.Service implements it.
type SessionLabeler interface {
	FetchSessionLabel(ctx context.Context, sessionID int64) (string, error)
}

type Service struct {
	tables   gateway.Tables
	sessions SessionLabeler
}

func NewService(tables gateway.Tables, sessions SessionLabeler) *Service {
	return &Service{tables: tables, sessions: sessions}
}

type AddResult struct {
	Added  bool   `json:"added"`
	Reason string `json:"error,omitempty"`
}

type Page struct {
	SessionLabel   string         `json:"session_label"`
	SessionCompoID *int64         `json:"session_compo_id"`
	Events         []models.Event `json:"epreuves"`
}

func (s *Service) FetchEvents(ctx context.Context, sessionCompoID int64) ([]models.Event, error) {
	events := []models.Event{}
	q := gateway.From(models.TableEvent, "id", "label", "session_compo").
		Where(gateway.Eq("session_compo", sessionCompoID)).
		Order("id")
	if err := s.tables.Select(ctx, &events, q); err != nil {
		return nil, fmt.Errorf("failed to fetch events of session_compo %d: %w", sessionCompoID, err)
	}
	return events, nil
}

// TryAddEvent validates the trimmed label (at least three characters, not
// already used regardless of case) before inserting it.
func (s *Service) TryAddEvent(ctx context.Context, label string, existingLabels []string, sessionCompoID int64) (AddResult, error) {
	event := models.Event{Label: strings.TrimSpace(label), SessionCompo: sessionCompoID}
	if err := event.Validate(); err != nil {
		return AddResult{Reason: msgInvalidLabel}, nil
	}
	if models.ContainsLabel(existingLabels, event.Label) {
		return AddResult{Reason: msgEventExists}, nil
	}

	row := gateway.Row{"label": event.Label, "session_compo": event.SessionCompo}
	if err := s.tables.Insert(ctx, models.TableEvent, row, nil); err != nil {
		return AddResult{}, fmt.Errorf("failed to add event: %w", err)
	}
	return AddResult{Added: true}, nil
}

func (s *Service) FetchSessionCompoID(ctx context.Context, sessionID int64, ue string) (int64, error) {
	var compo models.SessionCompo
	q := gateway.From(models.TableSessionCompo, "id", "session", "ue").
		Where(gateway.Eq("session", sessionID), gateway.Eq("ue", ue))
	if err := s.tables.SelectOne(ctx, &compo, q); err != nil {
		return 0, fmt.Errorf("failed to fetch session_compo for session %d and UE %s: %w", sessionID, ue, err)
	}
	return compo.ID, nil
}

// CheckEvent returns ErrEventNotFound unless eventID hangs under the UE ue of
// session sessionID.
func (s *Service) CheckEvent(ctx context.Context, sessionID int64, ue string, eventID int64) error {
	compoID, err := s.FetchSessionCompoID(ctx, sessionID, ue)
	if errors.Is(err, gateway.ErrNotFound) {
		return fmt.Errorf("%w: %d: %w", ErrEventNotFound, eventID, err)
	}
	if err != nil {
		return err
	}

	var event models.Event
	q := gateway.From(models.TableEvent, "id", "session_compo").
		Where(gateway.Eq("id", eventID), gateway.Eq("session_compo", compoID))
	if err := s.tables.SelectOne(ctx, &event, q); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return fmt.Errorf("%w: %d under session %d UE %s: %w", ErrEventNotFound, eventID, sessionID, ue, err)
		}
		return fmt.Errorf("failed to check event %d: %w", eventID, err)
	}
	return nil
}

// LoadUEPage gathers the UE view. A UE not linked to the session yields a nil
// SessionCompoID and no events.
func (s *Service) LoadUEPage(ctx context.Context, sessionID int64, ue string) (*Page, error) {
	label, err := s.sessions.FetchSessionLabel(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	page := &Page{SessionLabel: label, Events: []models.Event{}}

	compoID, err := s.FetchSessionCompoID(ctx, sessionID, ue)
	if errors.Is(err, gateway.ErrNotFound) {
		return page, nil
	}
	if err != nil {
		return nil, err
	}
	page.SessionCompoID = &compoID

	page.Events, err = s.FetchEvents(ctx, compoID)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Labels lists event labels, as expected by TryAddEvent.
func Labels(events []models.Event) []string {
	labels := make([]string, len(events))
	for i, e := range events {
		labels[i] = e.Label
	}
	return labels
}
