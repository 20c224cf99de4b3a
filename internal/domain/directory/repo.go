package directory

import "context"

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type ProfessionalRepository interface {
	Create(ctx context.Context, p *Professional) error
	GetByID(ctx context.Context, id int64) (*Professional, error)
	List(ctx context.Context, limit, offset int) ([]*Professional, int, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type RoomRepository interface {
	Create(ctx context.Context, r *Room) error
	GetByID(ctx context.Context, id int64) (*Room, error)
	List(ctx context.Context, limit, offset int) ([]*Room, int, error)
	SetActive(ctx context.Context, id int64, active bool) error
}
