package model

import "time"

type ChainState string

const (
	ChainStateActive      ChainState = "ACTIVE"
	ChainStateMaintenance ChainState = "MAINTENANCE"
	ChainStateDisabled    ChainState = "DISABLED"
)

func (s ChainState) IsValid() bool {
	return s == ChainStateActive || s == ChainStateMaintenance || s == ChainStateDisabled
}

type ChainStatus struct {
	ChainID   uint64     `gorm:"column:chain_id;primaryKey;autoIncrement:false" json:"chain_id"`
	Status    ChainState `gorm:"column:status;type:varchar(20);not null" json:"status"`
	Message   string     `gorm:"column:message;type:text" json:"message,omitempty"`
	UpdatedAt time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (ChainStatus) TableName() string {
	return "chain_statuses"
}
