package attendance

import (
	"context"
	"errors"
	"fmt"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
	"github.com/shrimpsizemoose/attendo/internal/metrics"
	"github.com/shrimpsizemoose/attendo/internal/models"
)

const emptyRoomLabel = "—"

var (
	ErrRoomNotFound    = errors.New("examination room not found")
	ErrCapacityReached = errors.New("maximum room capacity reached")
	ErrAlreadyPresent  = errors.New("student already marked present")
	ErrNotEnrolled     = errors.New("student not enrolled in the UE of this room")
)

type Service struct {
	tables gateway.Tables
}

func NewService(tables gateway.Tables) *Service {
	return &Service{tables: tables}
}

type Student struct {
	StudentID int64  `json:"student_id"`
	Group     string `json:"group"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Present   bool   `json:"present"`
}

// RoomInfo is an examination room with what it takes to build its roster.
// UE is empty when the event chain does not resolve to one.
type RoomInfo struct {
	Room       string
	Supervisor *string
	Capacity   int
	UE         string
}

type RoomView struct {
	RoomLabel         string    `json:"room_label"`
	CurrentSupervisor string    `json:"current_supervisor"`
	Capacity          int       `json:"capacity"`
	Students          []Student `json:"students"`
}

// Toggle is the presence of a student after TogglePresence.
type Toggle struct {
	StudentID int64 `json:"student_id"`
	Present   bool  `json:"present"`
}

func (s *Service) FetchTeachers(ctx context.Context) ([]models.Teacher, error) {
	teachers := []models.Teacher{}
	if err := s.tables.Select(ctx, &teachers, gateway.From(models.TableTeacher, "acro").Order("acro")); err != nil {
		return nil, fmt.Errorf("failed to load teachers: %w", err)
	}
	return teachers, nil
}

func (s *Service) UpdateSupervisor(ctx context.Context, roomID int64, acro string) error {
	if err := models.ValidateAcro(acro); err != nil {
		return fmt.Errorf("invalid supervisor: %w", err)
	}

	values := gateway.Row{"supervisor": acro}
	if err := s.tables.Update(ctx, models.TableExaminationRoom, values, gateway.Eq("id", roomID)); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return fmt.Errorf("%w: %d: %w", ErrRoomNotFound, roomID, err)
		}
		return fmt.Errorf("failed to update supervisor of room %d: %w", roomID, err)
	}
	return nil
}

// CheckRoom returns ErrRoomNotFound unless roomID is assigned to eventID.
func (s *Service) CheckRoom(ctx context.Context, eventID, roomID int64) error {
	var er models.ExaminationRoom
	q := gateway.From(models.TableExaminationRoom, "id", "event").
		Where(gateway.Eq("id", roomID), gateway.Eq("event", eventID))
	if err := s.tables.SelectOne(ctx, &er, q); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return fmt.Errorf("%w: %d in event %d: %w", ErrRoomNotFound, roomID, eventID, err)
		}
		return fmt.Errorf("failed to check room %d: %w", roomID, err)
	}
	return nil
}

// FetchRoomInfo follows examination_room -> room for the capacity and
// examination_room -> event -> session_compo for the UE. Missing catalog or
// event links are not errors: they leave Capacity at 0 and UE empty.
func (s *Service) FetchRoomInfo(ctx context.Context, roomID int64) (*RoomInfo, error) {
	var er models.ExaminationRoom
	q := gateway.From(models.TableExaminationRoom, "id", "event", "room", "supervisor").
		Where(gateway.Eq("id", roomID))
	if err := s.tables.SelectOne(ctx, &er, q); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d: %w", ErrRoomNotFound, roomID, err)
		}
		return nil, fmt.Errorf("failed to load room info: %w", err)
	}

	info := &RoomInfo{Room: er.Room, Supervisor: er.Supervisor}

	var room models.Room
	q = gateway.From(models.TableRoom, "label", "capacity").Where(gateway.Eq("label", er.Room))
	switch err := s.tables.SelectOne(ctx, &room, q); {
	case err == nil:
		info.Capacity = room.Capacity
	case !errors.Is(err, gateway.ErrNotFound):
		return nil, fmt.Errorf("failed to load room capacity: %w", err)
	}

	var event models.Event
	q = gateway.From(models.TableEvent, "id", "label", "session_compo").Where(gateway.Eq("id", er.Event))
	if err := s.tables.SelectOne(ctx, &event, q); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return info, nil
		}
		return nil, fmt.Errorf("failed to load room event: %w", err)
	}

	var compo models.SessionCompo
	q = gateway.From(models.TableSessionCompo, "id", "session", "ue").Where(gateway.Eq("id", event.SessionCompo))
	if err := s.tables.SelectOne(ctx, &compo, q); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return info, nil
		}
		return nil, fmt.Errorf("failed to load room UE: %w", err)
	}
	info.UE = compo.UE

	return info, nil
}

// FetchStudentsForUe lists the students enrolled in ue and flags those with a
// presence row in the room.
func (s *Service) FetchStudentsForUe(ctx context.Context, ue string, roomID int64) ([]Student, error) {
	var enrolled []models.PAE
	q := gateway.From(models.TablePAE, "student_id", "ue", "group").
		Where(gateway.Eq("ue", ue)).
		Order("student_id")
	if err := s.tables.Select(ctx, &enrolled, q); err != nil {
		return nil, fmt.Errorf("failed to load students: %w", err)
	}

	ids := make([]int64, len(enrolled))
	for i, p := range enrolled {
		ids[i] = p.StudentID
	}

	var records []models.Student
	q = gateway.From(models.TableStudent, "student_id", "firstname", "lastname").
		Where(gateway.In("student_id", ids))
	if err := s.tables.Select(ctx, &records, q); err != nil {
		return nil, fmt.Errorf("failed to load students: %w", err)
	}
	names := make(map[int64]models.Student, len(records))
	for _, r := range records {
		names[r.StudentID] = r
	}

	var presences []models.Examination
	q = gateway.From(models.TableExamination, "student").
		Where(gateway.Eq("examination_room", roomID))
	if err := s.tables.Select(ctx, &presences, q); err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}
	present := make(map[int64]bool, len(presences))
	for _, p := range presences {
		present[p.Student] = true
	}

	students := make([]Student, len(enrolled))
	for i, p := range enrolled {
		students[i] = Student{
			StudentID: p.StudentID,
			Group:     p.Group,
			Firstname: names[p.StudentID].Firstname,
			Lastname:  names[p.StudentID].Lastname,
			Present:   present[p.StudentID],
		}
	}
	return students, nil
}

func (s *Service) LoadFullRoomData(ctx context.Context, roomID int64) (*RoomView, error) {
	info, err := s.FetchRoomInfo(ctx, roomID)
	if err != nil {
		return nil, err
	}

	view := &RoomView{
		RoomLabel: info.Room,
		Capacity:  info.Capacity,
		Students:  []Student{},
	}
	if view.RoomLabel == "" {
		view.RoomLabel = emptyRoomLabel
	}
	if info.Supervisor != nil {
		view.CurrentSupervisor = *info.Supervisor
	}

	if info.UE != "" {
		view.Students, err = s.FetchStudentsForUe(ctx, info.UE, roomID)
		if err != nil {
			return nil, err
		}
	}
	return view, nil
}

func PresentCount(students []Student) int {
	n := 0
	for _, s := range students {
		if s.Present {
			n++
		}
	}
	return n
}

// TogglePresence flips the presence of student in the room.
//
// The capacity check runs first against the students snapshot supplied by
// the caller, then again on the gateway side as part of the insert, so
// concurrent editors working from stale snapshots cannot overshoot capacity.
// The new state is returned as computed; nothing is re-read.
func (s *Service) TogglePresence(ctx context.Context, student Student, roomID int64, students []Student, capacity int) (Toggle, error) {
	if !student.Present && PresentCount(students) >= capacity {
		metrics.PresenceToggles.WithLabelValues("capacity_reached").Inc()
		return Toggle{}, ErrCapacityReached
	}

	if student.Present {
		err := s.tables.Delete(ctx, models.TableExamination,
			gateway.Eq("student", student.StudentID),
			gateway.Eq("examination_room", roomID),
		)
		if err != nil {
			metrics.PresenceToggles.WithLabelValues("error").Inc()
			return Toggle{}, fmt.Errorf("failed to remove presence of student %d: %w", student.StudentID, err)
		}
		metrics.PresenceToggles.WithLabelValues("checked_out").Inc()
		return Toggle{StudentID: student.StudentID, Present: false}, nil
	}

	row := gateway.Row{"student": student.StudentID, "examination_room": roomID}
	err := s.tables.InsertWithinLimit(ctx, models.TableExamination, row, capacity,
		gateway.Eq("examination_room", roomID),
	)
	switch {
	case errors.Is(err, gateway.ErrLimitReached):
		logger.Debug.Printf("Room %d filled up concurrently, rejecting student %d", roomID, student.StudentID)
		metrics.PresenceToggles.WithLabelValues("capacity_reached").Inc()
		return Toggle{}, fmt.Errorf("%w: %w", ErrCapacityReached, err)
	case errors.Is(err, gateway.ErrConflict):
		metrics.PresenceToggles.WithLabelValues("error").Inc()
		return Toggle{}, fmt.Errorf("%w: %w", ErrAlreadyPresent, err)
	case err != nil:
		metrics.PresenceToggles.WithLabelValues("error").Inc()
		return Toggle{}, fmt.Errorf("failed to add presence of student %d: %w", student.StudentID, err)
	}

	metrics.PresenceToggles.WithLabelValues("checked_in").Inc()
	return Toggle{StudentID: student.StudentID, Present: true}, nil
}

// ToggleStudent reloads the room and toggles studentID against that fresh
// roster.
func (s *Service) ToggleStudent(ctx context.Context, roomID, studentID int64) (Toggle, error) {
	view, err := s.LoadFullRoomData(ctx, roomID)
	if err != nil {
		return Toggle{}, err
	}

	for _, st := range view.Students {
		if st.StudentID == studentID {
			return s.TogglePresence(ctx, st, roomID, view.Students, view.Capacity)
		}
	}
	return Toggle{}, fmt.Errorf("%w: student %d, room %d", ErrNotEnrolled, studentID, roomID)
}
