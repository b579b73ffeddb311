package export

import (
	"io"
	"os"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/store"
)

var (
	tsType = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}

	// UsersSchema is the Arrow schema of the users table.
	UsersSchema = arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.BinaryTypes.String},
		{Name: "first_name", Type: arrow.BinaryTypes.String},
		{Name: "last_name", Type: arrow.BinaryTypes.String},
		{Name: "created_at", Type: tsType},
		{Name: "updated_at", Type: tsType},
		{Name: "deleted_at", Type: tsType, Nullable: true},
		{Name: "country_code", Type: arrow.BinaryTypes.String},
		{Name: "favorite_color", Type: arrow.BinaryTypes.String},
	}, nil)

	// PostsSchema is the Arrow schema of the posts table.
	PostsSchema = arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.BinaryTypes.String},
		{Name: "user_id", Type: arrow.BinaryTypes.String},
		{Name: "post_text", Type: arrow.BinaryTypes.String},
		{Name: "created_at", Type: tsType},
		{Name: "updated_at", Type: tsType},
		{Name: "deleted_at", Type: tsType, Nullable: true},
	}, nil)

	// EventsSchema is the Arrow schema of the events table.
	EventsSchema = arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.BinaryTypes.String},
		{Name: "user_id", Type: arrow.BinaryTypes.String},
		{Name: "post_id", Type: arrow.BinaryTypes.String},
		{Name: "event_ts", Type: tsType},
		{Name: "event_type", Type: arrow.BinaryTypes.String},
	}, nil)

	// LedgerSchema is the Arrow schema of the audit ledger.
	LedgerSchema = arrow.NewSchema([]arrow.Field{
		{Name: "sim_day", Type: arrow.FixedWidthTypes.Date32},
		{Name: "table_name", Type: arrow.BinaryTypes.String},
		{Name: "rows_inserted", Type: arrow.PrimitiveTypes.Int64},
		{Name: "rows_updated", Type: arrow.PrimitiveTypes.Int64},
		{Name: "rows_deleted", Type: arrow.PrimitiveTypes.Int64},
		{Name: "real_timestamp", Type: tsType},
		{Name: "run_id", Type: arrow.BinaryTypes.String},
		{Name: "seed", Type: arrow.PrimitiveTypes.Uint64},
	}, nil)
)

func arrowWriters(ds *store.Dataset) []tableWriter {
	return []tableWriter{
		{models.TableUsers, func(f *os.File) error { return WriteUsersArrow(f, ds.Users) }},
		{models.TablePosts, func(f *os.File) error { return WritePostsArrow(f, ds.Posts) }},
		{models.TableEvents, func(f *os.File) error { return WriteEventsArrow(f, ds.Events) }},
		{"audit_ledger", func(f *os.File) error { return WriteLedgerArrow(f, ds.Ledger) }},
	}
}

// WriteUsersArrow writes users as a single-record Arrow IPC file.
func WriteUsersArrow(w io.WriteSeeker, users []models.User) error {
	return writeRecord(w, UsersSchema, func(b *array.RecordBuilder) {
		for _, u := range users {
			b.Field(0).(*array.StringBuilder).Append(string(u.ID))
			b.Field(1).(*array.StringBuilder).Append(u.FirstName)
			b.Field(2).(*array.StringBuilder).Append(u.LastName)
			appendTime(b.Field(3), u.CreatedAt)
			appendTime(b.Field(4), u.UpdatedAt)
			appendLifecycle(b.Field(5), u.Lifecycle)
			b.Field(6).(*array.StringBuilder).Append(u.CountryCode)
			b.Field(7).(*array.StringBuilder).Append(u.FavoriteColor)
		}
	})
}

// WritePostsArrow writes posts as a single-record Arrow IPC file.
func WritePostsArrow(w io.WriteSeeker, posts []models.Post) error {
	return writeRecord(w, PostsSchema, func(b *array.RecordBuilder) {
		for _, p := range posts {
			b.Field(0).(*array.StringBuilder).Append(string(p.ID))
			b.Field(1).(*array.StringBuilder).Append(string(p.UserID))
			b.Field(2).(*array.StringBuilder).Append(p.Text)
			appendTime(b.Field(3), p.CreatedAt)
			appendTime(b.Field(4), p.UpdatedAt)
			appendLifecycle(b.Field(5), p.Lifecycle)
		}
	})
}

// WriteEventsArrow writes events as a single-record Arrow IPC file.
func WriteEventsArrow(w io.WriteSeeker, events []models.Event) error {
	return writeRecord(w, EventsSchema, func(b *array.RecordBuilder) {
		for _, e := range events {
			b.Field(0).(*array.StringBuilder).Append(string(e.ID))
			b.Field(1).(*array.StringBuilder).Append(string(e.UserID))
			b.Field(2).(*array.StringBuilder).Append(string(e.PostID))
			appendTime(b.Field(3), e.Timestamp)
			b.Field(4).(*array.StringBuilder).Append(string(e.Type))
		}
	})
}

// WriteLedgerArrow writes ledger rows as a single-record Arrow IPC file.
func WriteLedgerArrow(w io.WriteSeeker, entries []models.LedgerEntry) error {
	return writeRecord(w, LedgerSchema, func(b *array.RecordBuilder) {
		for _, e := range entries {
			b.Field(0).(*array.Date32Builder).Append(arrow.Date32FromTime(e.SimDay))
			b.Field(1).(*array.StringBuilder).Append(e.Table)
			b.Field(2).(*array.Int64Builder).Append(int64(e.Counts.Inserted))
			b.Field(3).(*array.Int64Builder).Append(int64(e.Counts.Updated))
			b.Field(4).(*array.Int64Builder).Append(int64(e.Counts.Deleted))
			appendTime(b.Field(5), e.RecordedAt)
			b.Field(6).(*array.StringBuilder).Append(e.RunID)
			b.Field(7).(*array.Uint64Builder).Append(e.Seed)
		}
	})
}

func writeRecord(w io.WriteSeeker, schema *arrow.Schema, fill func(*array.RecordBuilder)) error {
	mem := memory.NewGoAllocator()
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	fill(b)
	rec := b.NewRecord()
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return err
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return err
	}
	return fw.Close()
}

func appendTime(fb array.Builder, t time.Time) {
	fb.(*array.TimestampBuilder).Append(arrow.Timestamp(t.UnixMicro()))
}

func appendLifecycle(fb array.Builder, lc models.Lifecycle) {
	at, deleted := lc.DeletedTime()
	if !deleted {
		fb.AppendNull()
		return
	}
	appendTime(fb, at)
}
