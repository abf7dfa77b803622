package database

import (
	"time"
)

// RunRecord is the summary row of one stored run. Payload holds the msgpack
// encoded run.
type RunRecord struct {
	ID         string    `gorm:"primaryKey;column:id"`
	Site       string    `gorm:"column:site;index"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
	Start      time.Time `gorm:"column:start_date"`
	Days       int       `gorm:"column:days"`
	Samples    int       `gorm:"column:samples"`
	Behavioral int       `gorm:"column:behavioral"`
	Failed     int       `gorm:"column:failed"`
	Likelihood string    `gorm:"column:likelihood"`
	Threshold  float64   `gorm:"column:threshold"`
	Seed       int64     `gorm:"column:seed"`
	Payload    []byte    `gorm:"column:payload;not null"`
}

// TableName specifies the table name for RunRecord
func (RunRecord) TableName() string {
	return "recharge_runs"
}

// DailyRecharge is one day of the recharge band of a run. Low and High are the
// outermost configured percentiles; nil marks a missing value.
type DailyRecharge struct {
	RunID  string    `gorm:"primaryKey;column:run_id"`
	Day    time.Time `gorm:"primaryKey;column:day"`
	Mean   *float64  `gorm:"column:mean"`
	Low    *float64  `gorm:"column:low"`
	Median *float64  `gorm:"column:median"`
	High   *float64  `gorm:"column:high"`
	Level  *float64  `gorm:"column:level_mean"`
}

// TableName specifies the table name for DailyRecharge
func (DailyRecharge) TableName() string {
	return "recharge_daily"
}
