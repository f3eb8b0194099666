package monitoring

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// HealthRecord is one persisted health report row.
type HealthRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Overall   string    `gorm:"index"`
	Detail    string    `gorm:"type:text"`
	CheckedAt time.Time `gorm:"index"`
}

// MetricSample is one persisted counter/gauge observation.
type MetricSample struct {
	ID         uint      `gorm:"primaryKey"`
	Name       string    `gorm:"index"`
	Value      float64
	RecordedAt time.Time `gorm:"index"`
}

// HistoryStore persists health reports and metric snapshots to
// Postgres so operators can query "when did the cold tier last
// degrade" after the fact. Entirely optional: the engine runs without
// one, and persistence failures are logged by the caller, never
// propagated into the serving path.
type HistoryStore struct {
	db *gorm.DB
}

// OpenHistoryStore connects to dsn and migrates the two tables.
func OpenHistoryStore(dsn string) (*HistoryStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&HealthRecord{}, &MetricSample{}); err != nil {
		return nil, err
	}
	return &HistoryStore{db: db}, nil
}

// SaveReport appends a health report row.
func (s *HistoryStore) SaveReport(report Report) error {
	detail := ""
	for name, result := range report.Checks {
		if detail != "" {
			detail += "; "
		}
		detail += name + "=" + result.Status.String()
		if result.Message != "" {
			detail += " (" + result.Message + ")"
		}
	}
	return s.db.Create(&HealthRecord{
		Overall:   report.Overall.String(),
		Detail:    detail,
		CheckedAt: report.CheckedAt,
	}).Error
}

// SaveSamples appends one row per metric value.
func (s *HistoryStore) SaveSamples(counters map[string]int64, gauges map[string]float64) error {
	now := time.Now()
	samples := make([]MetricSample, 0, len(counters)+len(gauges))
	for name, v := range counters {
		samples = append(samples, MetricSample{Name: name, Value: float64(v), RecordedAt: now})
	}
	for name, v := range gauges {
		samples = append(samples, MetricSample{Name: name, Value: v, RecordedAt: now})
	}
	if len(samples) == 0 {
		return nil
	}
	return s.db.Create(&samples).Error
}

// RecentReports returns the newest n health rows, newest first.
func (s *HistoryStore) RecentReports(n int) ([]HealthRecord, error) {
	var records []HealthRecord
	err := s.db.Order("checked_at desc").Limit(n).Find(&records).Error
	return records, err
}
