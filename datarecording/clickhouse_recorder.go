package datarecording

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/tebeka/atexit"
)

type tableType int

const (
	tableTypeTick tableType = iota
	tableTypeRunInfo
)

type clickHouseTable struct {
	tType   tableType
	ticks   []TickRecord
	runInfo []RunInfo
}

// ClickHouseRecorder writes tick records into ClickHouse. It only accepts
// TickRecord and RunInfo entries and appends them without reflection.
type ClickHouseRecorder struct {
	conn      clickhouse.Conn
	mu        sync.Mutex
	batchSize int

	tables     map[string]*clickHouseTable
	entryCount int
}

// NewClickHouseRecorder connects to ClickHouse with the given options. It
// panics if the server cannot be reached.
func NewClickHouseRecorder(
	opts *clickhouse.Options,
	batchSize int,
) *ClickHouseRecorder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	if opts.DialTimeout == 0 {
		opts.DialTimeout = 30 * time.Second
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		panic(fmt.Errorf("failed to connect to ClickHouse: %w", err))
	}

	if err := conn.Ping(context.Background()); err != nil {
		panic(fmt.Errorf("failed to ping ClickHouse: %w", err))
	}

	r := &ClickHouseRecorder{
		conn:      conn,
		batchSize: batchSize,
		tables:    make(map[string]*clickHouseTable),
	}

	atexit.Register(func() { r.Flush() })

	return r
}

// CreateTable creates a table for TickRecord or RunInfo entries.
func (r *ClickHouseRecorder) CreateTable(tableName string, sampleEntry any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tables[tableName]; ok {
		return
	}

	var (
		createSQL string
		tType     tableType
	)

	switch sampleEntry.(type) {
	case TickRecord:
		tType = tableTypeTick
		createSQL = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				RunID String,
				Loop String,
				TickCount UInt64,
				Missed UInt64,
				PeriodNs Int64,
				DeltaNs Int64,
				TimeNs Int64
			) ENGINE = MergeTree()
			ORDER BY (RunID, Loop, TickCount)
		`, tableName)
	case RunInfo:
		tType = tableTypeRunInfo
		createSQL = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				Property String,
				Value String
			) ENGINE = MergeTree()
			ORDER BY Property
		`, tableName)
	default:
		panic(fmt.Sprintf("unknown table type: %T", sampleEntry))
	}

	err := r.conn.Exec(context.Background(), createSQL)
	if err != nil {
		panic(fmt.Errorf("failed to create table %s: %w", tableName, err))
	}

	r.tables[tableName] = &clickHouseTable{tType: tType}
}

// InsertData buffers an entry. The buffer is flushed when it reaches the
// batch size.
func (r *ClickHouseRecorder) InsertData(tableName string, entry any) {
	r.mu.Lock()

	table, exists := r.tables[tableName]
	if !exists {
		r.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	switch table.tType {
	case tableTypeTick:
		e, ok := entry.(TickRecord)
		if !ok {
			r.mu.Unlock()
			panic(fmt.Sprintf("invalid entry type for ticks: %T", entry))
		}

		table.ticks = append(table.ticks, e)
	case tableTypeRunInfo:
		e, ok := entry.(RunInfo)
		if !ok {
			r.mu.Unlock()
			panic(fmt.Sprintf("invalid entry type for run info: %T", entry))
		}

		table.runInfo = append(table.runInfo, e)
	}

	r.entryCount++
	if r.entryCount >= r.batchSize {
		r.flushLocked()
	}

	r.mu.Unlock()
}

// ListTables returns all table names
func (r *ClickHouseRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables := make([]string, 0, len(r.tables))
	for name := range r.tables {
		tables = append(tables, name)
	}

	sort.Strings(tables)

	return tables
}

// Flush writes all batched data to ClickHouse using bulk inserts
func (r *ClickHouseRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.flushLocked()
}

func (r *ClickHouseRecorder) flushLocked() {
	if r.entryCount == 0 {
		return
	}

	ctx := context.Background()

	for tableName, table := range r.tables {
		if len(table.ticks) > 0 {
			r.flushTicks(ctx, tableName, table)
		}

		if len(table.runInfo) > 0 {
			r.flushRunInfo(ctx, tableName, table)
		}
	}

	r.entryCount = 0
}

func (r *ClickHouseRecorder) flushTicks(
	ctx context.Context,
	tableName string,
	table *clickHouseTable,
) {
	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO "+tableName)
	if err != nil {
		panic(fmt.Errorf("failed to prepare batch for %s: %w", tableName, err))
	}

	for _, e := range table.ticks {
		err = batch.Append(
			e.RunID,
			e.Loop,
			e.TickCount,
			e.Missed,
			e.PeriodNs,
			e.DeltaNs,
			e.TimeNs,
		)
		if err != nil {
			panic(fmt.Errorf("failed to append to batch: %w", err))
		}
	}

	if err := batch.Send(); err != nil {
		panic(fmt.Errorf("failed to send batch: %w", err))
	}

	table.ticks = table.ticks[:0]
}

func (r *ClickHouseRecorder) flushRunInfo(
	ctx context.Context,
	tableName string,
	table *clickHouseTable,
) {
	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO "+tableName)
	if err != nil {
		panic(fmt.Errorf("failed to prepare batch for %s: %w", tableName, err))
	}

	for _, e := range table.runInfo {
		if err := batch.Append(e.Property, e.Value); err != nil {
			panic(fmt.Errorf("failed to append to batch: %w", err))
		}
	}

	if err := batch.Send(); err != nil {
		panic(fmt.Errorf("failed to send batch: %w", err))
	}

	table.runInfo = table.runInfo[:0]
}

// Close flushes and closes the connection.
func (r *ClickHouseRecorder) Close() error {
	r.Flush()
	return r.conn.Close()
}
