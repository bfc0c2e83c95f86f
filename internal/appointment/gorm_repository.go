package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Row types for the gorm store. Ids are kept as text so the schema is the
// same on every gorm dialect.

type userRow struct {
	ID         string `gorm:"primaryKey;type:text"`
	Name       string `gorm:"not null"`
	Email      string `gorm:"uniqueIndex;not null"`
	IsProvider bool   `gorm:"not null;default:false"`
	AvatarKey  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (userRow) TableName() string { return "users" }

type appointmentRow struct {
	ID          string    `gorm:"primaryKey;type:text"`
	UserID      string    `gorm:"type:text;not null;index"`
	ProviderID  string    `gorm:"type:text;not null"`
	Date        time.Time `gorm:"not null"`
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	User     userRow `gorm:"foreignKey:UserID"`
	Provider userRow `gorm:"foreignKey:ProviderID"`
}

func (appointmentRow) TableName() string { return "appointments" }

type eventLogRow struct {
	ID            int64 `gorm:"primaryKey;autoIncrement"`
	EventType     string
	AppointmentID *string `gorm:"type:text"`
	Payload       []byte
	CreatedAt     time.Time
}

func (eventLogRow) TableName() string { return "event_logs" }

// GormRepository implements Repository and ProviderDirectory on top of gorm.
// It backs the sqlite driver used for local runs and tests.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Migrate creates the tables plus the partial unique index that enforces one
// active appointment per provider slot.
func (r *GormRepository) Migrate(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if err := db.AutoMigrate(&userRow{}, &appointmentRow{}, &eventLogRow{}); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS appointments_active_slot_idx
		ON appointments (provider_id, date) WHERE cancelled_at IS NULL`).Error
	if err != nil {
		return fmt.Errorf("create active slot index: %w", err)
	}
	return nil
}

func (r *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Conversions

func (u userRow) toUser() *User {
	return &User{
		ID:         uuid.MustParse(u.ID),
		Name:       u.Name,
		Email:      u.Email,
		IsProvider: u.IsProvider,
		AvatarKey:  u.AvatarKey,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func (a appointmentRow) toAppointment() *Appointment {
	return &Appointment{
		ID:          uuid.MustParse(a.ID),
		UserID:      uuid.MustParse(a.UserID),
		ProviderID:  uuid.MustParse(a.ProviderID),
		Date:        a.Date.UTC(),
		CancelledAt: utcPtr(a.CancelledAt),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func (a appointmentRow) toDetail() AppointmentDetail {
	return AppointmentDetail{
		Appointment: *a.toAppointment(),
		User:        a.User.toUser(),
		Provider:    a.Provider.toUser(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Directory

func (r *GormRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Where("id = ?", id.String()).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return row.toUser(), nil
}

func (r *GormRepository) FindProvider(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.GetUserByID(ctx, id)
}

func (r *GormRepository) CreateUser(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	row := userRow{
		ID:         u.ID.String(),
		Name:       u.Name,
		Email:      u.Email,
		IsProvider: u.IsProvider,
		AvatarKey:  u.AvatarKey,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.CreatedAt = row.CreatedAt
	u.UpdatedAt = row.UpdatedAt
	return nil
}

// Appointments

func (r *GormRepository) FindActiveConflict(ctx context.Context, providerID uuid.UUID, date time.Time) (*Appointment, error) {
	var row appointmentRow
	err := r.db.WithContext(ctx).
		Where("provider_id = ? AND date = ? AND cancelled_at IS NULL", providerID.String(), date.UTC()).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return row.toAppointment(), nil
}

func (r *GormRepository) InsertAppointment(ctx context.Context, userID, providerID uuid.UUID, date time.Time) (*Appointment, error) {
	row := appointmentRow{
		ID:         uuid.NewString(),
		UserID:     userID.String(),
		ProviderID: providerID.String(),
		Date:       date.UTC(),
	}

	err := r.db.WithContext(ctx).Omit("User", "Provider").Create(&row).Error
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return row.toAppointment(), nil
}

func (r *GormRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	var row appointmentRow
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Provider").
		Where("id = ?", id.String()).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	d := row.toDetail()
	return &d, nil
}

func (r *GormRepository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (*Appointment, error) {
	var out *Appointment

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&appointmentRow{}).
			Where("id = ? AND cancelled_at IS NULL", id.String()).
			Updates(map[string]any{"cancelled_at": at.UTC(), "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAppointmentNotFound
		}

		var row appointmentRow
		if err := tx.Where("id = ?", id.String()).Take(&row).Error; err != nil {
			return err
		}
		out = row.toAppointment()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	var rows []appointmentRow
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Provider").
		Where("user_id = ? AND cancelled_at IS NULL", userID.String()).
		Order("date ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDetails(rows), nil
}

func (r *GormRepository) ListActiveByProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]AppointmentDetail, error) {
	var rows []appointmentRow
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Provider").
		Where("provider_id = ? AND cancelled_at IS NULL AND date >= ? AND date < ?",
			providerID.String(), from.UTC(), to.UTC()).
		Order("date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDetails(rows), nil
}

func toDetails(rows []appointmentRow) []AppointmentDetail {
	out := make([]AppointmentDetail, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDetail())
	}
	return out
}

func (r *GormRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	row := eventLogRow{
		EventType: ev.EventType,
		Payload:   ev.Payload,
		CreatedAt: ev.CreatedAt,
	}
	if ev.AppointmentID != nil {
		id := ev.AppointmentID.String()
		row.AppointmentID = &id
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}
