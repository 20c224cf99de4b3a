package directory

import (
	"context"
	"errors"
	"fmt"
)

type Service struct {
	patients      PatientRepository
	professionals ProfessionalRepository
	rooms         RoomRepository
}

func NewService(patients PatientRepository, professionals ProfessionalRepository, rooms RoomRepository) *Service {
	return &Service{patients: patients, professionals: professionals, rooms: rooms}
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	p.Active = true
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) SetPatientActive(ctx context.Context, id int64, active bool) error {
	return s.patients.SetActive(ctx, id, active)
}

func (s *Service) CreateProfessional(ctx context.Context, p *Professional) error {
	if p.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	p.Active = true
	return s.professionals.Create(ctx, p)
}

func (s *Service) GetProfessional(ctx context.Context, id int64) (*Professional, error) {
	return s.professionals.GetByID(ctx, id)
}

func (s *Service) ListProfessionals(ctx context.Context, limit, offset int) ([]*Professional, int, error) {
	return s.professionals.List(ctx, limit, offset)
}

func (s *Service) SetProfessionalActive(ctx context.Context, id int64, active bool) error {
	return s.professionals.SetActive(ctx, id, active)
}

func (s *Service) CreateRoom(ctx context.Context, r *Room) error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	r.Active = true
	return s.rooms.Create(ctx, r)
}

func (s *Service) GetRoom(ctx context.Context, id int64) (*Room, error) {
	return s.rooms.GetByID(ctx, id)
}

func (s *Service) ListRooms(ctx context.Context, limit, offset int) ([]*Room, int, error) {
	return s.rooms.List(ctx, limit, offset)
}

func (s *Service) SetRoomActive(ctx context.Context, id int64, active bool) error {
	return s.rooms.SetActive(ctx, id, active)
}

// Lookup reports whether the referenced entity exists and is active. The
// scheduling engine consults this before accepting a booking.
func (s *Service) Lookup(ctx context.Context, kind EntityKind, id int64) (LookupState, error) {
	var active bool
	var err error

	switch kind {
	case KindPatient:
		var p *Patient
		p, err = s.patients.GetByID(ctx, id)
		if err == nil {
			active = p.Active
		}
	case KindProfessional:
		var p *Professional
		p, err = s.professionals.GetByID(ctx, id)
		if err == nil {
			active = p.Active
		}
	case KindRoom:
		var r *Room
		r, err = s.rooms.GetByID(ctx, id)
		if err == nil {
			active = r.Active
		}
	default:
		return StateNotFound, fmt.Errorf("unknown entity kind %q", kind)
	}

	if errors.Is(err, ErrNotFound) {
		return StateNotFound, nil
	}
	if err != nil {
		return StateNotFound, err
	}
	if !active {
		return StateInactive, nil
	}
	return StateActive, nil
}
