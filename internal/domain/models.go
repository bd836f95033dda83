package domain

// Table identifies the relation a reading is written to.
type Table string

const (
	TableElectricity Table = "electricity"
	TableHeat        Table = "heat"
)

// Reading is a normalized measurement ready for storage. The concrete value
// is one of Electricity (batch or live variant) or Heat.
type Reading interface {
	Table() Table
	Key() int64
}

// Electricity holds meter totals in milli-kWh. CurrentUsage is nil for
// readings recovered from the legacy log, which never carried a usage sample.
type Electricity struct {
	Timestamp    int64  `db:"timestamp" json:"timestamp"`
	UsedT1       int64  `db:"used_t1" json:"used_t1"`
	UsedT2       int64  `db:"used_t2" json:"used_t2"`
	ActiveTariff int    `db:"active_tariff" json:"active_tariff"`
	CurrentUsage *int64 `db:"current_usage" json:"current_usage,omitempty"`
}

func (Electricity) Table() Table { return TableElectricity }
func (e Electricity) Key() int64 { return e.Timestamp }

// FromLive reports whether the reading came from the live feed.
func (e Electricity) FromLive() bool { return e.CurrentUsage != nil }

// Heat holds cumulative energy and volume in milli-units plus the meter's
// operating hour count.
type Heat struct {
	Timestamp   int64 `db:"timestamp" json:"timestamp"`
	Energy      int64 `db:"energy" json:"energy"`
	Volume      int64 `db:"volume" json:"volume"`
	Hourcounter int64 `db:"hourcounter" json:"hourcounter"`
}

func (Heat) Table() Table { return TableHeat }
func (h Heat) Key() int64 { return h.Timestamp }

// ValidTariff reports whether t is one of the two meter tariffs.
func ValidTariff(t int) bool { return t == 1 || t == 2 }
