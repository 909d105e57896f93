package postgres

import (
	"context"
	"errors"
	"time"

	"delivery-agent/internal/domain/delivery"
	"delivery-agent/internal/infrastructure/database/postgres/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StateRepository implements delivery.StateStore on a shared Postgres
// database. Rows are scoped by agent id so several devices behind one
// gateway never see each other's queue.
type StateRepository struct {
	db      *gorm.DB
	agentID string
}

func NewStateRepository(db *DB, agentID string) *StateRepository {
	return &StateRepository{db: db.DB, agentID: agentID}
}

func (r *StateRepository) Load(ctx context.Context, key string) ([]byte, error) {
	var row models.AgentStateModel
	err := r.db.WithContext(ctx).
		Where("key = ? AND agent_id = ?", key, r.agentID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, delivery.ErrStateNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.Value, nil
}

func (r *StateRepository) Save(ctx context.Context, key string, data []byte) error {
	row := models.AgentStateModel{
		Key:       key,
		AgentID:   r.agentID,
		Value:     data,
		UpdatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}, {Name: "agent_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

func (r *StateRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).
		Where("key = ? AND agent_id = ?", key, r.agentID).
		Delete(&models.AgentStateModel{}).Error
}
