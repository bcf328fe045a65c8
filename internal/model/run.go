package model

import (
	"time"
)

// Run 一次批量采集运行
type Run struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	CollectorID string    `json:"collector_id" gorm:"type:varchar(64);index"`
	SiteFilter  string    `json:"site_filter" gorm:"type:varchar(128)"`
	DeviceCount int       `json:"device_count" gorm:"not null;default:0"`
	FailedCount int       `json:"failed_count" gorm:"not null;default:0"`
	Status      string    `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	ReportPath  string    `json:"report_path" gorm:"type:varchar(512)"`
	ErrorMsg    string    `json:"error_msg" gorm:"type:text"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Duration    int64     `json:"duration"` // 执行时长，毫秒
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (Run) TableName() string {
	return "runs"
}

// RunStatus 运行状态枚举
const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
	RunStatusFailed  = "failed"
)

// RunLog 运行日志
type RunLog struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	RunID     string    `json:"run_id" gorm:"type:varchar(64);not null;index"`
	Level     string    `json:"level" gorm:"type:varchar(16);not null"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 表名
func (RunLog) TableName() string {
	return "run_logs"
}

// FailedDevice 运行中不可达/采集失败的设备
type FailedDevice struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	RunID     string    `json:"run_id" gorm:"type:varchar(64);not null;index"`
	Site      string    `json:"site" gorm:"type:varchar(128)"`
	Host      string    `json:"host" gorm:"type:varchar(128);not null"`
	Address   string    `json:"address" gorm:"type:varchar(64);not null"`
	Reason    string    `json:"reason" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 表名
func (FailedDevice) TableName() string {
	return "failed_devices"
}

// DeviceRecord 设备清单记录（最近一次采集状态）
type DeviceRecord struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Site      string    `json:"site" gorm:"type:varchar(128);index"`
	Host      string    `json:"host" gorm:"type:varchar(128);not null"`
	Address   string    `json:"address" gorm:"type:varchar(64);not null;uniqueIndex"`
	Port      int       `json:"port" gorm:"not null;default:22"`
	Status    string    `json:"status" gorm:"type:varchar(16);default:'unknown'"`
	LastRunID string    `json:"last_run_id" gorm:"type:varchar(64)"`
	LastCheck time.Time `json:"last_check"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (DeviceRecord) TableName() string {
	return "device_records"
}

// DeviceStatus 设备状态枚举
const (
	DeviceStatusUnknown     = "unknown"
	DeviceStatusReachable   = "reachable"
	DeviceStatusUnreachable = "unreachable"
)
