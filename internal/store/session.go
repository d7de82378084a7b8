package store

import "time"

// DeviceSession tracks the highest frame counter seen for one LoRaWAN
// device address, so the framing shim can flag replayed or regressed
// frames.
type DeviceSession struct {
	DevAddr   uint32    `gorm:"primarykey;not null" json:"dev_addr"`
	LastFCnt  uint32    `json:"last_fcnt"`
	SeenCount uint64    `json:"seen_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (DeviceSession) TableName() string {
	return "device_sessions"
}
