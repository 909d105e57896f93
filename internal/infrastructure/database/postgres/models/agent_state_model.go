package models

import "time"

// AgentStateModel holds one persisted agent blob per key.
type AgentStateModel struct {
	Key       string    `gorm:"type:varchar(128);primaryKey"`
	AgentID   string    `gorm:"type:varchar(128);not null;default:'';primaryKey"`
	Value     []byte    `gorm:"type:bytea;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (AgentStateModel) TableName() string {
	return "agent_state"
}
