package rooms

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
	"github.com/shrimpsizemoose/attendo/internal/models"
)

type Service struct {
	tables gateway.Tables
}

func NewService(tables gateway.Tables) *Service {
	return &Service{tables: tables}
}

// AssignedRoom is an examination room of an event with its occupancy.
type AssignedRoom struct {
	ID           int64   `json:"id"`
	Room         string  `json:"room"`
	Supervisor   *string `json:"supervisor"`
	Capacity     int     `json:"capacity"`
	PresentCount int     `json:"present_count"`
}

type EventPage struct {
	EventLabel string         `json:"event_label"`
	Rooms      []models.Room  `json:"rooms"`
	Assigned   []AssignedRoom `json:"assigned_rooms"`
}

func (s *Service) FetchEventLabel(ctx context.Context, eventID int64) (string, error) {
	var event models.Event
	q := gateway.From(models.TableEvent, "id", "label", "session_compo").Where(gateway.Eq("id", eventID))
	if err := s.tables.SelectOne(ctx, &event, q); err != nil {
		return "", fmt.Errorf("failed to fetch event %d: %w", eventID, err)
	}
	return event.Label, nil
}

func (s *Service) FetchAllRooms(ctx context.Context) ([]models.Room, error) {
	rooms := []models.Room{}
	q := gateway.From(models.TableRoom, "label", "capacity").Order("label")
	if err := s.tables.Select(ctx, &rooms, q); err != nil {
		return nil, fmt.Errorf("failed to fetch rooms: %w", err)
	}
	return rooms, nil
}

// FetchAssignedRooms lists the rooms of an event. Capacity comes from
// allRooms (0 when the room is not in the catalog); present counts are read
// concurrently.
func (s *Service) FetchAssignedRooms(ctx context.Context, eventID int64, allRooms []models.Room) ([]AssignedRoom, error) {
	var assigned []models.ExaminationRoom
	q := gateway.From(models.TableExaminationRoom, "id", "event", "room", "supervisor").
		Where(gateway.Eq("event", eventID)).
		Order("id")
	if err := s.tables.Select(ctx, &assigned, q); err != nil {
		return nil, fmt.Errorf("failed to fetch rooms of event %d: %w", eventID, err)
	}

	capacities := make(map[string]int, len(allRooms))
	for _, r := range allRooms {
		capacities[r.Label] = r.Capacity
	}

	result := make([]AssignedRoom, len(assigned))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range assigned {
		result[i] = AssignedRoom{
			ID:         r.ID,
			Room:       r.Room,
			Supervisor: r.Supervisor,
			Capacity:   capacities[r.Room],
		}
		g.Go(func() error {
			n, err := s.tables.Count(gctx, models.TableExamination, gateway.Eq("examination_room", r.ID))
			if err != nil {
				return fmt.Errorf("failed to count presences in room %d: %w", r.ID, err)
			}
			result[i].PresentCount = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// AddRoomToEvent assigns a room to an event; the supervisor is chosen later.
func (s *Service) AddRoomToEvent(ctx context.Context, eventID int64, roomLabel string) error {
	assignment := models.ExaminationRoom{Event: eventID, Room: roomLabel}
	if err := assignment.Validate(); err != nil {
		return fmt.Errorf("invalid room assignment: %w", err)
	}

	row := gateway.Row{"event": eventID, "room": roomLabel, "supervisor": nil}
	if err := s.tables.Insert(ctx, models.TableExaminationRoom, row, nil); err != nil {
		return fmt.Errorf("failed to add room %s to event %d: %w", roomLabel, eventID, err)
	}
	return nil
}

func (s *Service) LoadEventPage(ctx context.Context, eventID int64) (*EventPage, error) {
	label, err := s.FetchEventLabel(ctx, eventID)
	if err != nil {
		return nil, err
	}
	rooms, err := s.FetchAllRooms(ctx)
	if err != nil {
		return nil, err
	}
	assigned, err := s.FetchAssignedRooms(ctx, eventID, rooms)
	if err != nil {
		return nil, err
	}

	return &EventPage{
		EventLabel: label,
		Rooms:      rooms,
		Assigned:   assigned,
	}, nil
}
