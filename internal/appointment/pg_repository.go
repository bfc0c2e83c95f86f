package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	appointmentColumns = `id, user_id, provider_id, date, cancelled_at, created_at, updated_at`
	userColumns        = `id, name, email, is_provider, avatar_key, created_at, updated_at`

	detailSelect = `
		SELECT a.id, a.user_id, a.provider_id, a.date, a.cancelled_at, a.created_at, a.updated_at,
		       u.id, u.name, u.email, u.is_provider, u.avatar_key, u.created_at, u.updated_at,
		       p.id, p.name, p.email, p.is_provider, p.avatar_key, p.created_at, p.updated_at
		FROM appointments a
		JOIN users u ON u.id = a.user_id
		JOIN users p ON p.id = a.provider_id`

	uniqueViolation = "23505"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var avatar *string

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.IsProvider,
		&avatar,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	u.AvatarKey = avatar
	return &u, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var cancelledAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.ProviderID,
		&a.Date,
		&cancelledAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.CancelledAt = cancelledAt
	return &a, nil
}

func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	var u, p User

	err := row.Scan(
		&d.ID, &d.UserID, &d.ProviderID, &d.Date, &d.CancelledAt, &d.CreatedAt, &d.UpdatedAt,
		&u.ID, &u.Name, &u.Email, &u.IsProvider, &u.AvatarKey, &u.CreatedAt, &u.UpdatedAt,
		&p.ID, &p.Name, &p.Email, &p.IsProvider, &p.AvatarKey, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	d.User = &u
	d.Provider = &p
	return &d, nil
}

func collectDetails(rows pgx.Rows) ([]AppointmentDetail, error) {
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Directory

func (r *PgRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *PgRepository) FindProvider(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.GetUserByID(ctx, id)
}

func (r *PgRepository) CreateUser(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, name, email, is_provider, avatar_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING created_at, updated_at
	`, u.ID, u.Name, u.Email, u.IsProvider, u.AvatarKey)

	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Appointments

func (r *PgRepository) FindActiveConflict(ctx context.Context, providerID uuid.UUID, date time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1 AND date = $2 AND cancelled_at IS NULL
	`, providerID, date)
	return scanAppointment(row)
}

func (r *PgRepository) InsertAppointment(ctx context.Context, userID, providerID uuid.UUID, date time.Time) (*Appointment, error) {
	id := uuid.New()

	// The partial unique index appointments_active_slot_idx arbitrates races
	// between concurrent bookings of the same slot.
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, user_id, provider_id, date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (provider_id, date) WHERE cancelled_at IS NULL DO NOTHING
		RETURNING `+appointmentColumns, id, userID, providerID, date)

	appt, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, ErrAppointmentNotFound) ||
			(errors.As(err, &pgErr) && pgErr.Code == uniqueViolation) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, detailSelect+` WHERE a.id = $1`, id)
	return scanDetail(row)
}

func (r *PgRepository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET cancelled_at = $2,
		    updated_at = now()
		WHERE id = $1
		  AND cancelled_at IS NULL
		RETURNING `+appointmentColumns, id, at)

	return scanAppointment(row)
}

func (r *PgRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, detailSelect+`
		WHERE a.user_id = $1 AND a.cancelled_at IS NULL
		ORDER BY a.date ASC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) ListActiveByProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, detailSelect+`
		WHERE a.provider_id = $1
		  AND a.cancelled_at IS NULL
		  AND a.date >= $2 AND a.date < $3
		ORDER BY a.date ASC
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
