package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"stock-crawler/internal/storage"
)

type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *slog.Logger
}

func NewRepository(dsn string, commandTimeout time.Duration, logger *slog.Logger) (*Repository, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Тестируем соединение
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{
		db:             db,
		commandTimeout: commandTimeout,
		logger:         logger,
	}, nil
}

// SaveRun сохраняет или обновляет итог запуска
func (r *Repository) SaveRun(ctx context.Context, run *storage.RunSummary) error {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	// MERGE statement для MS SQL
	query := `
		MERGE INTO TblCrawlRuns AS target
		USING (SELECT @RunID AS RunID) AS source
		ON target.[RunID] = source.RunID
		WHEN MATCHED THEN
			UPDATE SET
				[FinishedAt] = @FinishedAt,
				[Symbols] = @Symbols,
				[FailedSymbols] = @FailedSymbols,
				[FailedSections] = @FailedSections,
				[CheckSum] = @CheckSum
		WHEN NOT MATCHED THEN
			INSERT ([RunID], [Mode], [StartedAt], [FinishedAt], [Symbols], [FailedSymbols], [FailedSections], [CheckSum])
			VALUES (@RunID, @Mode, @StartedAt, @FinishedAt, @Symbols, @FailedSymbols, @FailedSections, @CheckSum);
	`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer r.closeStmt(stmt)

	_, err = stmt.ExecContext(ctx,
		sql.Named("RunID", run.RunID),
		sql.Named("Mode", run.Mode),
		sql.Named("StartedAt", run.StartedAt),
		sql.Named("FinishedAt", run.FinishedAt),
		sql.Named("Symbols", run.Symbols),
		sql.Named("FailedSymbols", run.FailedSymbols),
		sql.Named("FailedSections", run.FailedSections),
		sql.Named("CheckSum", run.CheckSum),
	)
	if err != nil {
		return fmt.Errorf("failed to execute upsert: %w", err)
	}
	return nil
}

// SaveFailures пишет незавершённые секции одной транзакцией
func (r *Repository) SaveFailures(ctx context.Context, failures []storage.SectionFailure) (int, error) {
	if len(failures) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// после Commit вернёт ErrTxDone
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO TblCrawlFailures ([RunID], [Symbol], [Section], [Result], [DT])
		VALUES (@RunID, @Symbol, @Section, @Result, @DT)
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer r.closeStmt(stmt)

	saved := 0
	for _, f := range failures {
		_, err := stmt.ExecContext(ctx,
			sql.Named("RunID", f.RunID),
			sql.Named("Symbol", f.Symbol),
			sql.Named("Section", f.Section),
			sql.Named("Result", f.Result),
			sql.Named("DT", f.Date),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert failure %s/%s: %w", f.Symbol, f.Section, err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return saved, nil
}

// GetLastRunTime получает время окончания последнего запуска режима
func (r *Repository) GetLastRunTime(ctx context.Context, mode string) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	query := `SELECT MAX(FinishedAt) FROM TblCrawlRuns WHERE Mode = @Mode`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer r.closeStmt(stmt)

	var last sql.NullTime
	if err := stmt.QueryRowContext(ctx, sql.Named("Mode", mode)).Scan(&last); err != nil {
		return time.Time{}, fmt.Errorf("failed to query database: %w", err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return last.Time, nil
}

func (r *Repository) closeStmt(stmt *sql.Stmt) {
	if err := stmt.Close(); err != nil {
		r.logger.Error("Failed to close statement", "error", err.Error())
	}
}

// Close закрывает соединение с БД
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

var _ storage.Repository = (*Repository)(nil)
