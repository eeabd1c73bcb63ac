package sessions

import (
	"context"
	"fmt"
	"strings"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
	"github.com/shrimpsizemoose/attendo/internal/models"
)

const (
	msgInvalidLabel  = "Please enter a valid label."
	msgSessionExists = "This session already exists."
	msgNoUE          = "Please select a UE."
)

type Service struct {
	tables gateway.Tables
}

func NewService(tables gateway.Tables) *Service {
	return &Service{tables: tables}
}

// AddResult reports a user-facing rejection. Gateway failures are returned as
// errors instead.
type AddResult struct {
	Added  bool   `json:"added"`
	Reason string `json:"error,omitempty"`
}

type Detail struct {
	Label     string      `json:"label"`
	UEs       []models.UE `json:"ues"`
	Available []models.UE `json:"all_ues"`
}

func (s *Service) FetchSessions(ctx context.Context) ([]models.Session, error) {
	sessions := []models.Session{}
	q := gateway.From(models.TableSession, "id", "label").Order("id")
	if err := s.tables.Select(ctx, &sessions, q); err != nil {
		return nil, fmt.Errorf("failed to fetch sessions: %w", err)
	}
	return sessions, nil
}

func (s *Service) AddSession(ctx context.Context, label string) (*models.Session, error) {
	var created models.Session
	row := gateway.Row{"label": label}
	if err := s.tables.Insert(ctx, models.TableSession, row, &created); err != nil {
		return nil, fmt.Errorf("failed to add session: %w", err)
	}
	return &created, nil
}

// AddSessionIfNotExists inserts a session unless existing already holds the
// same label, compared case-insensitively. The check is client-side only.
func (s *Service) AddSessionIfNotExists(ctx context.Context, label string, existing []models.Session) (AddResult, error) {
	session := models.Session{Label: strings.TrimSpace(label)}
	if err := session.Validate(); err != nil {
		return AddResult{Reason: msgInvalidLabel}, nil
	}

	labels := make([]string, len(existing))
	for i, e := range existing {
		labels[i] = e.Label
	}
	if models.ContainsLabel(labels, session.Label) {
		return AddResult{Reason: msgSessionExists}, nil
	}

	if _, err := s.AddSession(ctx, session.Label); err != nil {
		return AddResult{}, err
	}
	return AddResult{Added: true}, nil
}

func (s *Service) FetchSessionLabel(ctx context.Context, sessionID int64) (string, error) {
	var session models.Session
	q := gateway.From(models.TableSession, "id", "label").Where(gateway.Eq("id", sessionID))
	if err := s.tables.SelectOne(ctx, &session, q); err != nil {
		return "", fmt.Errorf("failed to fetch session %d: %w", sessionID, err)
	}
	return session.Label, nil
}

func (s *Service) FetchAssignedUes(ctx context.Context, sessionID int64) ([]models.UE, error) {
	ues := []models.UE{}
	q := gateway.From(models.TableSessionCompo, "ue").
		Where(gateway.Eq("session", sessionID)).
		Order("id")
	if err := s.tables.Select(ctx, &ues, q); err != nil {
		return nil, fmt.Errorf("failed to fetch UEs of session %d: %w", sessionID, err)
	}
	return ues, nil
}

// FetchAvailableUes returns every UE not yet linked to the session, in
// catalog order.
func (s *Service) FetchAvailableUes(ctx context.Context, sessionID int64) ([]models.UE, error) {
	linked, err := s.FetchAssignedUes(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var all []models.UE
	if err := s.tables.Select(ctx, &all, gateway.From(models.TableUE, "ue").Order("ue")); err != nil {
		return nil, fmt.Errorf("failed to fetch UEs: %w", err)
	}

	taken := make(map[string]bool, len(linked))
	for _, ue := range linked {
		taken[ue.Code] = true
	}

	available := []models.UE{}
	for _, ue := range all {
		if !taken[ue.Code] {
			available = append(available, ue)
		}
	}
	return available, nil
}

func (s *Service) AddUeToSession(ctx context.Context, sessionID int64, ue string) error {
	compo := models.SessionCompo{Session: sessionID, UE: ue}
	if err := compo.Validate(); err != nil {
		return fmt.Errorf("invalid session UE link: %w", err)
	}

	row := gateway.Row{"session": sessionID, "ue": ue}
	if err := s.tables.Insert(ctx, models.TableSessionCompo, row, nil); err != nil {
		return fmt.Errorf("failed to add UE %s to session %d: %w", ue, sessionID, err)
	}
	return nil
}

// TryAddUeToSession rejects an empty selection without touching the gateway.
func (s *Service) TryAddUeToSession(ctx context.Context, sessionID int64, ue string) (AddResult, error) {
	ue = strings.TrimSpace(ue)
	if ue == "" {
		return AddResult{Reason: msgNoUE}, nil
	}
	if err := s.AddUeToSession(ctx, sessionID, ue); err != nil {
		return AddResult{}, err
	}
	return AddResult{Added: true}, nil
}

func (s *Service) LoadSessionDetail(ctx context.Context, sessionID int64) (*Detail, error) {
	label, err := s.FetchSessionLabel(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ues, err := s.FetchAssignedUes(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	available, err := s.FetchAvailableUes(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &Detail{
		Label:     label,
		UEs:       ues,
		Available: available,
	}, nil
}
