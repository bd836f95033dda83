package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ANIKETSHETTY47/energyhub/internal/domain"
	"github.com/ANIKETSHETTY47/energyhub/internal/normalize"
)

const legacyFields = 4

// ParseLegacyElectricity parses one line of the DSMR tab-separated log:
//
//	timestamp <TAB> active_tariff <TAB> used_t1 <TAB> used_t2
//
// The logger padded lines with NUL bytes, so those are trimmed first. Any
// bad field rejects the whole line.
func ParseLegacyElectricity(line string, loc *time.Location) (domain.Electricity, error) {
	fields := strings.Split(strings.Trim(line, "\x00"), "\t")
	if len(fields) < legacyFields {
		return domain.Electricity{}, parseErr(line, errors.Errorf("expected %d fields, got %d", legacyFields, len(fields)))
	}

	ts, err := normalize.ParseTimestamp(fields[0], loc)
	if err != nil {
		return domain.Electricity{}, parseErr(line, errors.Wrap(err, "timestamp"))
	}
	tariff, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 8)
	if err != nil {
		return domain.Electricity{}, parseErr(line, errors.Wrap(err, "active_tariff"))
	}
	usedT1, err := normalize.MilliFromDecimalText(fields[2])
	if err != nil {
		return domain.Electricity{}, parseErr(line, errors.Wrap(err, "used_t1"))
	}
	usedT2, err := normalize.MilliFromDecimalText(fields[3])
	if err != nil {
		return domain.Electricity{}, parseErr(line, errors.Wrap(err, "used_t2"))
	}

	if !domain.ValidTariff(int(tariff)) {
		return domain.Electricity{}, &Error{
			Kind:  KindValidation,
			Input: line,
			Err:   errors.Wrapf(ErrInvalidTariff, "tariff %d", tariff),
		}
	}

	return domain.Electricity{
		Timestamp:    ts.Unix(),
		UsedT1:       usedT1,
		UsedT2:       usedT2,
		ActiveTariff: int(tariff),
	}, nil
}
