// Package backfill loads the historical meter logs into the store.
//
// Each log is ingested inside one transaction. A line that fails to parse or
// to insert is logged and skipped; the transaction still commits with every
// other line. Opening, reading or committing a log is fatal for the run.
package backfill

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/energyhub/internal/domain"
	"github.com/ANIKETSHETTY47/energyhub/internal/parser"
	"github.com/ANIKETSHETTY47/energyhub/internal/repository"
)

const (
	maxLineSize = 1 << 20
	excerptSize = 256
)

// ErrLineTooLong marks a line that exceeded maxLineSize. The line is
// skipped and the rest of the log is still ingested.
var ErrLineTooLong = errors.New("line too long")

// Opener yields the contents of a named log.
type Opener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Dir opens logs from a directory on local disk.
type Dir string

func (d Dir) Open(_ context.Context, name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(string(d), name))
}

// Source is one log and the parser for its lines.
type Source struct {
	Name  string
	Table domain.Table
	Parse func(line string) (domain.Reading, error)
}

// Sources returns the electricity log followed by the heat log.
func Sources(electricity, heat string, loc *time.Location) []Source {
	return []Source{
		{
			Name:  electricity,
			Table: domain.TableElectricity,
			Parse: func(line string) (domain.Reading, error) {
				return parser.ParseLegacyElectricity(line, loc)
			},
		},
		{
			Name:  heat,
			Table: domain.TableHeat,
			Parse: func(line string) (domain.Reading, error) {
				return parser.ParseHeat([]byte(line), loc)
			},
		},
	}
}

// FileReport summarizes one log. Lines excludes blank lines.
type FileReport struct {
	Name       string
	Lines      int
	Inserted   int
	Duplicates int
	Failed     int
	Committed  bool
}

type Report struct {
	Files []FileReport
}

// Failed is the number of rejected lines across all logs.
func (r Report) Failed() int {
	n := 0
	for _, f := range r.Files {
		n += f.Failed
	}
	return n
}

type Driver struct {
	db      *sqlx.DB
	opener  Opener
	sources []Source
	log     zerolog.Logger
}

func New(db *sqlx.DB, opener Opener, sources []Source, log zerolog.Logger) *Driver {
	return &Driver{db: db, opener: opener, sources: sources, log: log}
}

// Run ingests every source in order. It stops at the first fatal error;
// sources committed before it stay committed.
func (d *Driver) Run(ctx context.Context) (Report, error) {
	var report Report
	for _, src := range d.sources {
		fr, err := d.ingest(ctx, src)
		report.Files = append(report.Files, fr)
		if err != nil {
			return report, errors.Wrapf(err, "backfill %s", src.Name)
		}
		d.log.Info().
			Str("file", fr.Name).
			Int("lines", fr.Lines).
			Int("inserted", fr.Inserted).
			Int("duplicates", fr.Duplicates).
			Int("failed", fr.Failed).
			Msg("backfill committed")
	}
	return report, nil
}

func (d *Driver) ingest(ctx context.Context, src Source) (FileReport, error) {
	fr := FileReport{Name: src.Name}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fr, errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	rc, err := d.opener.Open(ctx, src.Name)
	if err != nil {
		return fr, errors.Wrap(err, "open")
	}
	defer rc.Close()

	lr := newLineReader(rc, maxLineSize)
	lineNo := 0
	for {
		line, long, err := lr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fr, errors.Wrap(err, "read")
		}
		lineNo++
		if err := ctx.Err(); err != nil {
			return fr, err
		}
		if !long && strings.TrimSpace(strings.Trim(line, "\x00")) == "" {
			continue
		}
		fr.Lines++

		var inserted bool
		if long {
			if len(line) > excerptSize {
				line = line[:excerptSize]
			}
			err = &parser.Error{Kind: parser.KindParse, Input: line, Err: errors.Wrapf(ErrLineTooLong, "over %d bytes", maxLineSize)}
		} else {
			inserted, err = d.ingestLine(ctx, tx, src, line)
		}
		switch {
		case err != nil:
			fr.Failed++
			d.log.Error().
				Err(err).
				Str("file", src.Name).
				Int("line", lineNo).
				Str("input", line).
				Str("kind", failureKind(err)).
				Msg("error parsing line")
		case inserted:
			fr.Inserted++
		default:
			fr.Duplicates++
		}
	}

	if err := tx.Commit(); err != nil {
		return fr, errors.Wrap(err, "commit")
	}
	fr.Committed = true
	return fr, nil
}

func (d *Driver) ingestLine(ctx context.Context, tx *sqlx.Tx, src Source, line string) (bool, error) {
	rd, err := src.Parse(line)
	if err != nil {
		return false, err
	}
	return repository.InsertIsolated(ctx, tx, rd)
}

func failureKind(err error) string {
	if errors.Is(err, repository.ErrStorage) {
		return "storage error"
	}
	return parser.KindOf(err).String()
}

// lineReader splits a log into lines like bufio.ScanLines, but a line longer
// than limit is drained and reported instead of failing the whole read.
type lineReader struct {
	r     *bufio.Reader
	limit int
}

func newLineReader(r io.Reader, limit int) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024), limit: limit}
}

// next returns the next line without its terminator. The bool reports a line
// that was cut to its first limit bytes. io.EOF is returned once no data is
// left.
func (lr *lineReader) next() (string, bool, error) {
	var (
		buf  []byte
		long bool
	)
	for {
		chunk, err := lr.r.ReadSlice('\n')
		data := chunk
		if err == nil {
			data = data[:len(data)-1]
		}
		if room := lr.limit - len(buf); len(data) > room {
			buf = append(buf, data[:room]...)
			long = true
		} else {
			buf = append(buf, data...)
		}

		switch err {
		case nil:
			return strings.TrimSuffix(string(buf), "\r"), long, nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			if len(buf) == 0 && !long {
				return "", false, io.EOF
			}
			return strings.TrimSuffix(string(buf), "\r"), long, nil
		default:
			return "", false, err
		}
	}
}
