package export

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/store"
)

// ledgerRow is the flat JSON shape of a ledger entry, matching the table.
type ledgerRow struct {
	SimDay        string `json:"sim_day"`
	TableName     string `json:"table_name"`
	RowsInserted  int    `json:"rows_inserted"`
	RowsUpdated   int    `json:"rows_updated"`
	RowsDeleted   int    `json:"rows_deleted"`
	RealTimestamp string `json:"real_timestamp"`
	RunID         string `json:"run_id"`
	Seed          uint64 `json:"seed"`
}

func jsonlWriters(ds *store.Dataset) []tableWriter {
	ledgerRows := make([]ledgerRow, len(ds.Ledger))
	for i, e := range ds.Ledger {
		ledgerRows[i] = ledgerRow{
			SimDay:        e.SimDay.Format("2006-01-02"),
			TableName:     e.Table,
			RowsInserted:  e.Counts.Inserted,
			RowsUpdated:   e.Counts.Updated,
			RowsDeleted:   e.Counts.Deleted,
			RealTimestamp: e.RecordedAt.Format("2006-01-02T15:04:05.000000Z07:00"),
			RunID:         e.RunID,
			Seed:          e.Seed,
		}
	}
	return []tableWriter{
		{models.TableUsers, func(f *os.File) error { return WriteJSONL(f, ds.Users) }},
		{models.TablePosts, func(f *os.File) error { return WriteJSONL(f, ds.Posts) }},
		{models.TableEvents, func(f *os.File) error { return WriteJSONL(f, ds.Events) }},
		{"audit_ledger", func(f *os.File) error { return WriteJSONL(f, ledgerRows) }},
	}
}

// WriteJSONL encodes rows as one JSON object per line.
func WriteJSONL[T any](w io.Writer, rows []T) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}
