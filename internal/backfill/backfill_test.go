package backfill

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/energyhub/internal/database"
	"github.com/ANIKETSHETTY47/energyhub/internal/domain"
	"github.com/ANIKETSHETTY47/energyhub/internal/repository"
)

const (
	dsmrLog = "2021-01-01T00:00:00+01:00\t1\t1.234\t0.000\n" +
		"2021-01-01T00:00:10+01:00\tbroken\n" +
		"2021-01-01T00:00:20+01:00\t2\t1.240\t0.003\n"
	kamstrupLog = `{"energy":10.5,"volume":2.0,"hourcounter":100.7}` + "\n" +
		`{"timestamp":"2021-01-01T01:00:00+01:00","energy":10.6,"volume":2.1,"temp1":60,"temp2":40,"hourcounter":101.2}` + "\n"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Connect(context.Background(), database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func writeLogs(t *testing.T, files map[string]string) Dir {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return Dir(dir)
}

func count(t *testing.T, db *sqlx.DB, table domain.Table) int {
	t.Helper()
	n, err := repository.New(db).Count(context.Background(), table)
	require.NoError(t, err)
	return n
}

func TestRunIsolatesBadLines(t *testing.T) {
	db := newTestDB(t)
	dir := writeLogs(t, map[string]string{"dsmr.tsv": dsmrLog, "kamstrup.ndjson": kamstrupLog})
	var logs bytes.Buffer

	d := New(db, dir, Sources("dsmr.tsv", "kamstrup.ndjson", time.UTC), zerolog.New(&logs))
	report, err := d.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Files, 2)
	assert.Equal(t, FileReport{Name: "dsmr.tsv", Lines: 3, Inserted: 2, Failed: 1, Committed: true}, report.Files[0])
	assert.Equal(t, FileReport{Name: "kamstrup.ndjson", Lines: 2, Inserted: 2, Committed: true}, report.Files[1])
	assert.Equal(t, 1, report.Failed())

	assert.Equal(t, 2, count(t, db, domain.TableElectricity))
	assert.Equal(t, 2, count(t, db, domain.TableHeat))

	assert.Contains(t, logs.String(), `2021-01-01T00:00:10+01:00\tbroken`)
	assert.Contains(t, logs.String(), `"kind":"parse error"`)
	assert.Equal(t, 1, strings.Count(logs.String(), "error parsing line"))
}

func TestRunStoresNormalizedValues(t *testing.T) {
	db := newTestDB(t)
	dir := writeLogs(t, map[string]string{"dsmr.tsv": dsmrLog, "kamstrup.ndjson": kamstrupLog})

	_, err := New(db, dir, Sources("dsmr.tsv", "kamstrup.ndjson", time.UTC), zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)

	var e []domain.Electricity
	require.NoError(t, db.Select(&e, `SELECT * FROM electricity ORDER BY timestamp`))
	assert.Equal(t, []domain.Electricity{
		{Timestamp: 1609455600, UsedT1: 1234, UsedT2: 0, ActiveTariff: 1},
		{Timestamp: 1609455620, UsedT1: 1240, UsedT2: 3, ActiveTariff: 2},
	}, e)

	var h []domain.Heat
	require.NoError(t, db.Select(&h, `SELECT * FROM heat ORDER BY timestamp`))
	assert.Equal(t, []domain.Heat{
		{Timestamp: 1454821908, Energy: 10500, Volume: 2000, Hourcounter: 100},
		{Timestamp: 1609459200, Energy: 10600, Volume: 2100, Hourcounter: 101},
	}, h)
}

func TestRunTwiceCountsDuplicates(t *testing.T) {
	db := newTestDB(t)
	dir := writeLogs(t, map[string]string{"dsmr.tsv": dsmrLog, "kamstrup.ndjson": kamstrupLog})
	d := New(db, dir, Sources("dsmr.tsv", "kamstrup.ndjson", time.UTC), zerolog.Nop())

	_, err := d.Run(context.Background())
	require.NoError(t, err)
	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Files[0].Inserted)
	assert.Equal(t, 2, report.Files[0].Duplicates)
	assert.Equal(t, 2, report.Files[1].Duplicates)
	assert.Equal(t, 2, count(t, db, domain.TableElectricity))
}

func TestRunRejectsInvalidTariff(t *testing.T) {
	db := newTestDB(t)
	dir := writeLogs(t, map[string]string{
		"dsmr.tsv":        "2021-01-01T00:00:00+01:00\t3\t1.234\t0.000\n",
		"kamstrup.ndjson": "",
	})
	var logs bytes.Buffer

	report, err := New(db, dir, Sources("dsmr.tsv", "kamstrup.ndjson", time.UTC), zerolog.New(&logs)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Files[0].Failed)
	assert.Equal(t, 0, count(t, db, domain.TableElectricity))
	assert.Contains(t, logs.String(), "invalid tariff")
	assert.Contains(t, logs.String(), `"kind":"validation error"`)
}

func TestRunSkipsBlankLines(t *testing.T) {
	db := newTestDB(t)
	dir := writeLogs(t, map[string]string{
		"dsmr.tsv":        "\n\x00\x00\x00\n" + dsmrLog + "\r\n",
		"kamstrup.ndjson": kamstrupLog + "\n\n",
	})

	report, err := New(db, dir, Sources("dsmr.tsv", "kamstrup.ndjson", time.UTC), zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Files[0].Lines)
	assert.Equal(t, 2, report.Files[1].Lines)
	assert.Equal(t, 1, report.Failed())
}

func TestRunMissingElectricityLogIsFatal(t *testing.T) {
	db := newTestDB(t)
	dir := writeLogs(t, map[string]string{"kamstrup.ndjson": kamstrupLog})

	report, err := New(db, dir, Sources("dsmr.tsv", "kamstrup.ndjson", time.UTC), zerolog.Nop()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsmr.tsv")
	require.Len(t, report.Files, 1)
	assert.False(t, report.Files[0].Committed)
	assert.Equal(t, 0, count(t, db, domain.TableHeat))
}

func TestRunMissingHeatLogKeepsElectricity(t *testing.T) {
	db := newTestDB(t)
	dir := writeLogs(t, map[string]string{"dsmr.tsv": dsmrLog})

	report, err := New(db, dir, Sources("dsmr.tsv", "kamstrup.ndjson", time.UTC), zerolog.Nop()).Run(context.Background())
	require.Error(t, err)
	require.Len(t, report.Files, 2)
	assert.True(t, report.Files[0].Committed)
	assert.Equal(t, 2, count(t, db, domain.TableElectricity))
}

func TestRunIsolatesStorageFailures(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Exec(`CREATE TRIGGER reject_hour_100 BEFORE INSERT ON heat
		WHEN NEW.hourcounter = 100 BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)
	dir := writeLogs(t, map[string]string{"dsmr.tsv": "", "kamstrup.ndjson": kamstrupLog})
	var logs bytes.Buffer

	report, err := New(db, dir, Sources("dsmr.tsv", "kamstrup.ndjson", time.UTC), zerolog.New(&logs)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FileReport{Name: "kamstrup.ndjson", Lines: 2, Inserted: 1, Failed: 1, Committed: true}, report.Files[1])
	assert.Equal(t, 1, count(t, db, domain.TableHeat))
	assert.Contains(t, logs.String(), `"kind":"storage error"`)
}

type brokenReader struct{ after string }

func (b *brokenReader) Read(p []byte) (int, error) {
	if b.after == "" {
		return 0, errors.New("disk on fire")
	}
	n := copy(p, b.after)
	b.after = b.after[n:]
	return n, nil
}

func (b *brokenReader) Close() error { return nil }

type openerFunc func(name string) (io.ReadCloser, error)

func (f openerFunc) Open(_ context.Context, name string) (io.ReadCloser, error) { return f(name) }

func TestRunReadFailureRollsBack(t *testing.T) {
	db := newTestDB(t)
	opener := openerFunc(func(name string) (io.ReadCloser, error) {
		return &brokenReader{after: dsmrLog}, nil
	})

	report, err := New(db, opener, Sources("dsmr.tsv", "kamstrup.ndjson", time.UTC), zerolog.Nop()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
	assert.False(t, report.Files[0].Committed)
	assert.Equal(t, 0, count(t, db, domain.TableElectricity))
}

func TestRunCancelled(t *testing.T) {
	db := newTestDB(t)
	dir := writeLogs(t, map[string]string{"dsmr.tsv": dsmrLog, "kamstrup.ndjson": kamstrupLog})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(db, dir, Sources("dsmr.tsv", "kamstrup.ndjson", time.UTC), zerolog.Nop()).Run(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, count(t, db, domain.TableElectricity))
}

func TestRunSkipsOversizedLine(t *testing.T) {
	db := newTestDB(t)
	huge := "2021-01-01T00:00:10+01:00\t1\t" + strings.Repeat("9", 2*maxLineSize) + "\t0.000\n"
	lines := strings.SplitAfter(dsmrLog, "\n")
	dir := writeLogs(t, map[string]string{
		"dsmr.tsv":        lines[0] + huge + lines[2],
		"kamstrup.ndjson": kamstrupLog,
	})
	var logs bytes.Buffer

	report, err := New(db, dir, Sources("dsmr.tsv", "kamstrup.ndjson", time.UTC), zerolog.New(&logs)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FileReport{Name: "dsmr.tsv", Lines: 3, Inserted: 2, Failed: 1, Committed: true}, report.Files[0])
	assert.True(t, report.Files[1].Committed)
	assert.Equal(t, 2, count(t, db, domain.TableElectricity))
	assert.Equal(t, 2, count(t, db, domain.TableHeat))

	assert.Contains(t, logs.String(), "line too long")
	assert.Contains(t, logs.String(), `"kind":"parse error"`)
	assert.Less(t, logs.Len(), 4*excerptSize+2048)
}

func TestLineReader(t *testing.T) {
	lr := newLineReader(strings.NewReader("short\r\n0123456789abc\n\nlast"), 8)

	type result struct {
		line string
		long bool
	}
	var got []result
	for {
		line, long, err := lr.next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, result{line, long})
	}
	assert.Equal(t, []result{
		{"short", false},
		{"01234567", true},
		{"", false},
		{"last", false},
	}, got)
}

func TestLineReaderExactLimit(t *testing.T) {
	lr := newLineReader(strings.NewReader("12345678\n"), 8)
	line, long, err := lr.next()
	require.NoError(t, err)
	assert.Equal(t, "12345678", line)
	assert.False(t, long)

	_, _, err = lr.next()
	assert.Equal(t, io.EOF, err)
}
