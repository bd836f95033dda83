package parser

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/ANIKETSHETTY47/energyhub/internal/domain"
	"github.com/ANIKETSHETTY47/energyhub/internal/normalize"
)

// kamstrupValues is the heat meter payload, both on kamstrup/values and in
// the kamstrup.ndjson archive.
type kamstrupValues struct {
	Timestamp   *string  `json:"timestamp"`
	Energy      *float64 `json:"energy"`
	Volume      *float64 `json:"volume"`
	Temp1       float64  `json:"temp1"`
	Temp2       float64  `json:"temp2"`
	Hourcounter *float64 `json:"hourcounter"`
}

// dsmrMeasurements is the payload published on dsmr/measurements.
type dsmrMeasurements struct {
	Timestamp                        *string  `json:"timestamp"`
	ActiveTariff                     *string  `json:"ActiveTariff"`
	ElectricityUsedT1                *float64 `json:"ElectricityUsedT1"`
	ElectricityUsedT2                *float64 `json:"ElectricityUsedT2"`
	CurrentElectricityUsage          *float64 `json:"CurrentElectricityUsage"`
	CurrentElectricityDraw           float64  `json:"CurrentElectricityDraw"`
	InstantaneousActivePowerPositive float64  `json:"InstantaneousActivePowerPositive"`
	InstantaneousActivePowerNegative float64  `json:"InstantaneousActivePowerNegative"`
}

// ParseHeat decodes one heat record. When the record has no timestamp it is
// derived from the hour counter.
func ParseHeat(payload []byte, loc *time.Location) (domain.Heat, error) {
	var v kamstrupValues
	if err := json.Unmarshal(payload, &v); err != nil {
		return domain.Heat{}, serializationErr(payload, err)
	}
	if err := required(
		field{"energy", v.Energy},
		field{"volume", v.Volume},
		field{"hourcounter", v.Hourcounter},
	); err != nil {
		return domain.Heat{}, serializationErr(payload, err)
	}

	var explicit *time.Time
	if v.Timestamp != nil {
		ts, err := normalize.ParseTimestamp(*v.Timestamp, loc)
		if err != nil {
			return domain.Heat{}, parseErr(string(payload), errors.Wrap(err, "timestamp"))
		}
		explicit = &ts
	}

	energy, err := normalize.MilliFromFloat(*v.Energy)
	if err != nil {
		return domain.Heat{}, parseErr(string(payload), errors.Wrap(err, "energy"))
	}
	volume, err := normalize.MilliFromFloat(*v.Volume)
	if err != nil {
		return domain.Heat{}, parseErr(string(payload), errors.Wrap(err, "volume"))
	}

	hours, err := normalize.Hourcounter(*v.Hourcounter)
	if err != nil {
		return domain.Heat{}, parseErr(string(payload), errors.Wrap(err, "hourcounter"))
	}
	ts, err := normalize.HeatTimestamp(explicit, *v.Hourcounter)
	if err != nil {
		return domain.Heat{}, parseErr(string(payload), errors.Wrap(err, "timestamp"))
	}

	return domain.Heat{
		Timestamp:   ts,
		Energy:      energy,
		Volume:      volume,
		Hourcounter: hours,
	}, nil
}

// ParseElectricity decodes one live DSMR event. Unlike the legacy log, an
// unrecognized tariff name is stored as 0 instead of being rejected.
func ParseElectricity(payload []byte, loc *time.Location) (domain.Electricity, error) {
	var m dsmrMeasurements
	if err := json.Unmarshal(payload, &m); err != nil {
		return domain.Electricity{}, serializationErr(payload, err)
	}
	if m.Timestamp == nil {
		return domain.Electricity{}, serializationErr(payload, errors.New("missing field timestamp"))
	}
	if m.ActiveTariff == nil {
		return domain.Electricity{}, serializationErr(payload, errors.New("missing field ActiveTariff"))
	}
	if err := required(
		field{"ElectricityUsedT1", m.ElectricityUsedT1},
		field{"ElectricityUsedT2", m.ElectricityUsedT2},
		field{"CurrentElectricityUsage", m.CurrentElectricityUsage},
	); err != nil {
		return domain.Electricity{}, serializationErr(payload, err)
	}

	ts, err := normalize.ParseTimestamp(*m.Timestamp, loc)
	if err != nil {
		return domain.Electricity{}, parseErr(string(payload), errors.Wrap(err, "timestamp"))
	}
	usedT1, err := normalize.MilliFromFloat(*m.ElectricityUsedT1)
	if err != nil {
		return domain.Electricity{}, parseErr(string(payload), errors.Wrap(err, "ElectricityUsedT1"))
	}
	usedT2, err := normalize.MilliFromFloat(*m.ElectricityUsedT2)
	if err != nil {
		return domain.Electricity{}, parseErr(string(payload), errors.Wrap(err, "ElectricityUsedT2"))
	}
	usage, err := normalize.MilliFromFloat(*m.CurrentElectricityUsage)
	if err != nil {
		return domain.Electricity{}, parseErr(string(payload), errors.Wrap(err, "CurrentElectricityUsage"))
	}

	return domain.Electricity{
		Timestamp:    ts.Unix(),
		UsedT1:       usedT1,
		UsedT2:       usedT2,
		ActiveTariff: TariffFromName(*m.ActiveTariff),
		CurrentUsage: &usage,
	}, nil
}

// TariffFromName maps the DSMR tariff names to 1 and 2, anything else to 0.
func TariffFromName(name string) int {
	switch name {
	case "Tariff1":
		return 1
	case "Tariff2":
		return 2
	default:
		return 0
	}
}

type field struct {
	name  string
	value *float64
}

func required(fields ...field) error {
	for _, f := range fields {
		if f.value == nil {
			return errors.Errorf("missing field %s", f.name)
		}
	}
	return nil
}
