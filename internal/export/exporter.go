// Package export writes collected tables to object storage as CSV or parquet.
package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/tigerroll/matchday/internal/records"
	"github.com/tigerroll/matchday/internal/store"
	"github.com/tigerroll/matchday/pkg/batch/adapter/storage"
	"github.com/tigerroll/matchday/pkg/batch/core/support/clock"
	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
	"github.com/tigerroll/matchday/pkg/batch/support/util/logger"
)

const moduleName = "Exporter"

var log = logger.For(moduleName)

// Format is an export file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat accepts "csv" and "parquet" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv or parquet)", s)
	}
}

// Tables lists the exportable tables.
func Tables() []string {
	return []string{records.TableFixtures, records.TableTeamMatches, records.TableMatchStatistics, records.TablePlayerStatistics}
}

// Result describes one written object.
type Result struct {
	Table  string
	Object string
	Rows   int
	Bytes  int
}

// Exporter reads tables from the store and uploads them to a storage connection.
type Exporter struct {
	store       *store.Store
	conn        storage.StorageConnection
	bucket      string
	compression string
	clock       clock.Clock
}

// NewExporter creates an Exporter. An empty bucket uses the connection's default.
func NewExporter(s *store.Store, conn storage.StorageConnection, bucket, compression string, c clock.Clock) *Exporter {
	if c == nil {
		c = clock.Real()
	}
	return &Exporter{store: s, conn: conn, bucket: bucket, compression: compression, clock: c}
}

// Export writes every given table, or all of them when tables is empty.
func (e *Exporter) Export(ctx context.Context, format Format, tables ...string) ([]Result, error) {
	if len(tables) == 0 {
		tables = Tables()
	}
	results := make([]Result, 0, len(tables))
	for _, table := range tables {
		res, err := e.exportTable(ctx, format, table)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *Exporter) exportTable(ctx context.Context, format Format, table string) (Result, error) {
	var (
		data []byte
		rows int
		err  error
	)
	switch table {
	case records.TableFixtures:
		data, rows, err = encodeTable[records.Fixture](ctx, e, format, "date, match_id")
	case records.TableTeamMatches:
		data, rows, err = encodeTable[records.TeamMatch](ctx, e, format, "team_id, date, match_id")
	case records.TableMatchStatistics:
		data, rows, err = encodeTable[records.MatchStatistic](ctx, e, format, "match_id, period")
	case records.TablePlayerStatistics:
		data, rows, err = encodeTable[records.PlayerStatistic](ctx, e, format, "match_id, team_id, player_id")
	default:
		return Result{}, exception.NewBatchErrorf(moduleName, "unknown table %q (want one of %s)", table, strings.Join(Tables(), ", "))
	}
	if err != nil {
		return Result{}, exception.NewBatchErrorf(moduleName, "failed to export %s as %s", table, format, err)
	}

	object := e.objectName(table, format)
	contentType := "text/csv"
	if format == FormatParquet {
		contentType = "application/octet-stream"
	}
	if err := e.conn.Upload(ctx, e.bucket, object, bytes.NewReader(data), contentType); err != nil {
		return Result{}, exception.NewBatchErrorf(moduleName, "failed to upload %s", object, err)
	}
	log.Infof("Exported %d rows of %s to %s (%d bytes).", rows, table, object, len(data))
	return Result{Table: table, Object: object, Rows: rows, Bytes: len(data)}, nil
}

// objectName places each export under a Hive-style date partition of its table.
func (e *Exporter) objectName(table string, format Format) string {
	now := e.clock.Now().UTC()
	return path.Join(table, "dt="+now.Format("2006-01-02"), fmt.Sprintf("%s_%s.%s", table, now.Format("150405"), format))
}

func encodeTable[T any](ctx context.Context, e *Exporter, format Format, orderBy string) ([]byte, int, error) {
	rows, err := store.All[T](ctx, e.store, orderBy)
	if err != nil {
		return nil, 0, err
	}
	switch format {
	case FormatCSV:
		data, err := encodeCSV(rows)
		return data, len(rows), err
	case FormatParquet:
		codec, err := compressionCodec(e.compression)
		if err != nil {
			return nil, 0, err
		}
		data, err := encodeParquet(rows, codec)
		return data, len(rows), err
	default:
		return nil, 0, fmt.Errorf("unknown export format %q", format)
	}
}
