package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/roperia/roperia/internal/platform/storage/sqlitemigrate"
	"github.com/roperia/roperia/internal/services/trade/storage"
	"github.com/roperia/roperia/internal/services/trade/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for trade state.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a trade SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := ensureForeignKeysEnabled(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func ensureForeignKeysEnabled(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("sqlite db is required")
	}
	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("check sqlite foreign key pragma: %w", err)
	}
	if enabled != 1 {
		return fmt.Errorf("sqlite foreign keys are disabled")
	}
	return nil
}

// PutGarment upserts one garment row.
func (s *Store) PutGarment(ctx context.Context, record storage.GarmentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := normalizeGarmentRecord(record)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
	INSERT INTO garments (id, owner_user_id, title, availability, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		owner_user_id = excluded.owner_user_id,
		title = excluded.title,
		availability = excluded.availability,
		updated_at = excluded.updated_at
	`,
		normalized.ID,
		normalized.OwnerUserID,
		normalized.Title,
		normalized.Availability,
		toMillis(normalized.CreatedAt),
		toMillis(normalized.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put garment: %w", err)
	}
	return nil
}

// GetGarment loads one garment row by id.
func (s *Store) GetGarment(ctx context.Context, garmentID string) (storage.GarmentRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.GarmentRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.GarmentRecord{}, fmt.Errorf("storage is not configured")
	}
	garmentID = strings.TrimSpace(garmentID)
	if garmentID == "" {
		return storage.GarmentRecord{}, fmt.Errorf("garment id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, owner_user_id, title, availability, created_at, updated_at
FROM garments
WHERE id = ?
`, garmentID)
	record, err := scanGarment(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.GarmentRecord{}, storage.ErrNotFound
		}
		return storage.GarmentRecord{}, fmt.Errorf("get garment: %w", err)
	}
	return record, nil
}

// SetGarmentAvailability conditionally flips one garment availability state.
func (s *Store) SetGarmentAvailability(ctx context.Context, garmentID string, from, to storage.Availability, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	garmentID = strings.TrimSpace(garmentID)
	if garmentID == "" {
		return false, fmt.Errorf("garment id is required")
	}
	if from == "" || to == "" {
		return false, fmt.Errorf("availability states are required")
	}

	changed, err := setGarmentAvailabilityExec(ctx, s.sqlDB, garmentID, from, to, at)
	if err != nil {
		return false, err
	}
	return changed, nil
}

// PutProposal inserts one proposal row.
func (s *Store) PutProposal(ctx context.Context, record storage.ProposalRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := normalizeProposalRecord(record)
	if err != nil {
		return err
	}

	var respondedAt sql.NullInt64
	if normalized.RespondedAt != nil {
		respondedAt = sql.NullInt64{Int64: toMillis(*normalized.RespondedAt), Valid: true}
	}
	_, err = s.sqlDB.ExecContext(ctx, `
	INSERT INTO proposals (
		id, proposer_user_id, receiver_user_id, offered_garment_id, requested_garment_id,
		message, state, priority, is_counteroffer, created_at, updated_at, responded_at, expires_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		normalized.ID,
		normalized.ProposerUserID,
		normalized.ReceiverUserID,
		normalized.OfferedGarmentID,
		normalized.RequestedGarmentID,
		normalized.Message,
		normalized.State,
		normalized.Priority,
		boolToInt(normalized.IsCounteroffer),
		toMillis(normalized.CreatedAt),
		toMillis(normalized.UpdatedAt),
		respondedAt,
		toMillis(normalized.ExpiresAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put proposal: %w", err)
	}
	return nil
}

// GetProposal loads one proposal row by id.
func (s *Store) GetProposal(ctx context.Context, proposalID string) (storage.ProposalRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ProposalRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ProposalRecord{}, fmt.Errorf("storage is not configured")
	}
	proposalID = strings.TrimSpace(proposalID)
	if proposalID == "" {
		return storage.ProposalRecord{}, fmt.Errorf("proposal id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, proposalSelect+` WHERE id = ?`, proposalID)
	record, err := scanProposal(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ProposalRecord{}, storage.ErrNotFound
		}
		return storage.ProposalRecord{}, fmt.Errorf("get proposal: %w", err)
	}
	return record, nil
}

// ListProposalsByUser lists proposals where the user is proposer or receiver,
// newest first.
func (s *Store) ListProposalsByUser(ctx context.Context, userID string) ([]storage.ProposalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, proposalSelect+`
WHERE proposer_user_id = ? OR receiver_user_id = ?
ORDER BY created_at DESC, id DESC
`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list proposals by user: %w", err)
	}
	defer rows.Close()
	return collectProposals(rows)
}

// CountActiveProposalsByGarment counts proposals holding an admission slot on
// the garment: accepted, or pending and not yet past the deadline.
func (s *Store) CountActiveProposalsByGarment(ctx context.Context, garmentID string, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	garmentID = strings.TrimSpace(garmentID)
	if garmentID == "" {
		return 0, fmt.Errorf("garment id is required")
	}

	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(1)
FROM proposals
WHERE (offered_garment_id = ? OR requested_garment_id = ?)
  AND (state = ? OR (state = ? AND expires_at > ?))
`, garmentID, garmentID, storage.ProposalStateAccepted, storage.ProposalStatePending, toMillis(now)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active proposals: %w", err)
	}
	return count, nil
}

// HasActiveProposalForPair reports whether an active proposal already links
// the exact (offered, requested) garment pair.
func (s *Store) HasActiveProposalForPair(ctx context.Context, offeredGarmentID, requestedGarmentID string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	offeredGarmentID = strings.TrimSpace(offeredGarmentID)
	requestedGarmentID = strings.TrimSpace(requestedGarmentID)
	if offeredGarmentID == "" || requestedGarmentID == "" {
		return false, fmt.Errorf("garment ids are required")
	}

	var found int
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT 1
FROM proposals
WHERE offered_garment_id = ?
  AND requested_garment_id = ?
  AND (state = ? OR (state = ? AND expires_at > ?))
LIMIT 1
`, offeredGarmentID, requestedGarmentID, storage.ProposalStateAccepted, storage.ProposalStatePending, toMillis(now)).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check active proposal pair: %w", err)
	}
	return true, nil
}

// UpdateProposalState conditionally transitions one proposal state. The
// required prior state is part of the UPDATE predicate; losing the race
// yields ErrStale.
func (s *Store) UpdateProposalState(ctx context.Context, proposalID string, from, to storage.ProposalState, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	proposalID = strings.TrimSpace(proposalID)
	if proposalID == "" {
		return fmt.Errorf("proposal id is required")
	}

	// responded_at records a receiver response; proposer cancellation and
	// system expiry leave it untouched.
	var respondedAt sql.NullInt64
	if to == storage.ProposalStateAccepted || to == storage.ProposalStateRejected {
		respondedAt = sql.NullInt64{Int64: toMillis(at), Valid: true}
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE proposals
SET state = ?, responded_at = COALESCE(?, responded_at), updated_at = ?
WHERE id = ? AND state = ?
`, to, respondedAt, toMillis(at), proposalID, from)
	if err != nil {
		return fmt.Errorf("update proposal state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update proposal state rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrStale
	}
	return nil
}

// AcceptExchange atomically moves a pending unexpired proposal to accepted
// and reserves both garments. Either every flip commits or none does.
func (s *Store) AcceptExchange(ctx context.Context, proposalID, offeredGarmentID, requestedGarmentID string, at time.Time) error {
	return s.exchangeTx(ctx, "accept exchange", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
UPDATE proposals
SET state = ?, responded_at = ?, updated_at = ?
WHERE id = ? AND state = ? AND expires_at > ?
`, storage.ProposalStateAccepted, toMillis(at), toMillis(at), proposalID, storage.ProposalStatePending, toMillis(at))
		if err != nil {
			return fmt.Errorf("accept proposal: %w", err)
		}
		if err := requireRowChanged(result); err != nil {
			return err
		}
		for _, garmentID := range []string{offeredGarmentID, requestedGarmentID} {
			changed, err := setGarmentAvailabilityExec(ctx, tx, garmentID, storage.AvailabilityAvailable, storage.AvailabilityReserved, at)
			if err != nil {
				return err
			}
			if !changed {
				return storage.ErrStale
			}
		}
		return nil
	})
}

// ReleaseExchange atomically moves an accepted proposal to cancelled and
// returns both garments to the tradable pool.
func (s *Store) ReleaseExchange(ctx context.Context, proposalID, offeredGarmentID, requestedGarmentID string, at time.Time) error {
	return s.exchangeTx(ctx, "release exchange", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
UPDATE proposals
SET state = ?, updated_at = ?
WHERE id = ? AND state = ?
`, storage.ProposalStateCancelled, toMillis(at), proposalID, storage.ProposalStateAccepted)
		if err != nil {
			return fmt.Errorf("cancel accepted proposal: %w", err)
		}
		if err := requireRowChanged(result); err != nil {
			return err
		}
		for _, garmentID := range []string{offeredGarmentID, requestedGarmentID} {
			changed, err := setGarmentAvailabilityExec(ctx, tx, garmentID, storage.AvailabilityReserved, storage.AvailabilityAvailable, at)
			if err != nil {
				return err
			}
			if !changed {
				return storage.ErrStale
			}
		}
		return nil
	})
}

// CompleteExchange atomically moves an accepted proposal to completed and
// consumes both garments out of the tradable pool.
func (s *Store) CompleteExchange(ctx context.Context, proposalID, offeredGarmentID, requestedGarmentID string, at time.Time) error {
	return s.exchangeTx(ctx, "complete exchange", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
UPDATE proposals
SET state = ?, updated_at = ?
WHERE id = ? AND state = ?
`, storage.ProposalStateCompleted, toMillis(at), proposalID, storage.ProposalStateAccepted)
		if err != nil {
			return fmt.Errorf("complete proposal: %w", err)
		}
		if err := requireRowChanged(result); err != nil {
			return err
		}
		for _, garmentID := range []string{offeredGarmentID, requestedGarmentID} {
			changed, err := setGarmentAvailabilityExec(ctx, tx, garmentID, storage.AvailabilityReserved, storage.AvailabilityTraded, at)
			if err != nil {
				return err
			}
			if !changed {
				return storage.ErrStale
			}
		}
		return nil
	})
}

// ExpireDueProposals bulk-transitions every pending proposal past its
// deadline to expired. The WHERE clause is the precondition, so a proposal
// accepted concurrently is simply excluded.
func (s *Store) ExpireDueProposals(ctx context.Context, now time.Time) ([]storage.ProposalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if now.IsZero() {
		return nil, fmt.Errorf("now is required")
	}

	marker := toMillis(now)
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE proposals
SET state = ?, updated_at = ?
WHERE state = ? AND expires_at <= ?
`, storage.ProposalStateExpired, marker, storage.ProposalStatePending, marker)
	if err != nil {
		return nil, fmt.Errorf("expire due proposals: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("expire due proposals rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx, proposalSelect+`
WHERE state = ? AND updated_at = ?
ORDER BY expires_at ASC, id ASC
`, storage.ProposalStateExpired, marker)
	if err != nil {
		return nil, fmt.Errorf("list expired proposals: %w", err)
	}
	defer rows.Close()
	return collectProposals(rows)
}

// ListProposalsExpiringBefore lists pending proposals due after now and
// before deadline, soonest first.
func (s *Store) ListProposalsExpiringBefore(ctx context.Context, now, deadline time.Time) ([]storage.ProposalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if now.IsZero() || deadline.IsZero() {
		return nil, fmt.Errorf("time window is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, proposalSelect+`
WHERE state = ? AND expires_at > ? AND expires_at <= ?
ORDER BY expires_at ASC, id ASC
`, storage.ProposalStatePending, toMillis(now), toMillis(deadline))
	if err != nil {
		return nil, fmt.Errorf("list expiring proposals: %w", err)
	}
	defer rows.Close()
	return collectProposals(rows)
}

// PutMessage inserts one negotiation message row.
func (s *Store) PutMessage(ctx context.Context, record storage.MessageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := normalizeMessageRecord(record)
	if err != nil {
		return err
	}

	var readAt sql.NullInt64
	if normalized.ReadAt != nil {
		readAt = sql.NullInt64{Int64: toMillis(*normalized.ReadAt), Valid: true}
	}
	_, err = s.sqlDB.ExecContext(ctx, `
	INSERT INTO negotiation_messages (id, proposal_id, sender_user_id, body, is_system, sent_at, read_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		normalized.ID,
		normalized.ProposalID,
		normalized.SenderUserID,
		normalized.Body,
		boolToInt(normalized.System),
		toMillis(normalized.SentAt),
		readAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put message: %w", err)
	}
	return nil
}

// ListMessagesByProposal lists one proposal transcript oldest first.
func (s *Store) ListMessagesByProposal(ctx context.Context, proposalID string) ([]storage.MessageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	proposalID = strings.TrimSpace(proposalID)
	if proposalID == "" {
		return nil, fmt.Errorf("proposal id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, proposal_id, sender_user_id, body, is_system, sent_at, read_at
FROM negotiation_messages
WHERE proposal_id = ?
ORDER BY sent_at ASC, id ASC
`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var records []storage.MessageRecord
	for rows.Next() {
		record, scanErr := scanMessage(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan message row: %w", scanErr)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return records, nil
}

// MarkMessagesRead marks every unread non-system message in the proposal not
// authored by the reader.
func (s *Store) MarkMessagesRead(ctx context.Context, proposalID, readerUserID string, readAt time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	proposalID = strings.TrimSpace(proposalID)
	readerUserID = strings.TrimSpace(readerUserID)
	if proposalID == "" {
		return 0, fmt.Errorf("proposal id is required")
	}
	if readerUserID == "" {
		return 0, fmt.Errorf("reader user id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE negotiation_messages
SET read_at = ?
WHERE proposal_id = ?
  AND sender_user_id != ?
  AND is_system = 0
  AND read_at IS NULL
`, toMillis(readAt), proposalID, readerUserID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark messages read rows affected: %w", err)
	}
	return int(affected), nil
}

// CountUnreadMessages counts unread non-system messages addressed to the reader.
func (s *Store) CountUnreadMessages(ctx context.Context, proposalID, readerUserID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	proposalID = strings.TrimSpace(proposalID)
	readerUserID = strings.TrimSpace(readerUserID)
	if proposalID == "" || readerUserID == "" {
		return 0, fmt.Errorf("proposal id and reader user id are required")
	}

	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(1)
FROM negotiation_messages
WHERE proposal_id = ?
  AND sender_user_id != ?
  AND is_system = 0
  AND read_at IS NULL
`, proposalID, readerUserID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return count, nil
}

// PutEvaluation atomically persists one evaluation with its dimension rating
// rows. A duplicate (proposal, evaluator) pair yields ErrConflict.
func (s *Store) PutEvaluation(ctx context.Context, record storage.EvaluationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := normalizeEvaluationRecord(record)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin evaluation write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback evaluation write: %v", cause, rollbackErr)
		}
		return cause
	}

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO evaluations (id, proposal_id, evaluator_user_id, evaluated_user_id, general_rating, comment, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		normalized.ID,
		normalized.ProposalID,
		normalized.EvaluatorUserID,
		normalized.EvaluatedUserID,
		normalized.GeneralRating,
		normalized.Comment,
		toMillis(normalized.CreatedAt),
	); err != nil {
		if isUniqueConstraintError(err) {
			return rollbackWith(storage.ErrConflict)
		}
		return rollbackWith(fmt.Errorf("put evaluation: %w", err))
	}

	for _, rating := range normalized.DimensionRatings {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO evaluation_dimension_ratings (evaluation_id, dimension_id, rating)
		VALUES (?, ?, ?)
		`, normalized.ID, rating.DimensionID, rating.Rating); err != nil {
			if isForeignKeyConstraintError(err) {
				return rollbackWith(storage.ErrConflict)
			}
			return rollbackWith(fmt.Errorf("put dimension rating: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit evaluation write: %w", err)
	}
	return nil
}

// HasEvaluation reports whether the evaluator already rated this proposal.
func (s *Store) HasEvaluation(ctx context.Context, proposalID, evaluatorUserID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	proposalID = strings.TrimSpace(proposalID)
	evaluatorUserID = strings.TrimSpace(evaluatorUserID)
	if proposalID == "" || evaluatorUserID == "" {
		return false, fmt.Errorf("proposal id and evaluator user id are required")
	}

	var found int
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT 1 FROM evaluations WHERE proposal_id = ? AND evaluator_user_id = ? LIMIT 1
`, proposalID, evaluatorUserID).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check evaluation: %w", err)
	}
	return true, nil
}

// ListEvaluationsByEvaluatedUser lists evaluations received by one user,
// oldest first, each with its dimension ratings loaded.
func (s *Store) ListEvaluationsByEvaluatedUser(ctx context.Context, evaluatedUserID string) ([]storage.EvaluationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	evaluatedUserID = strings.TrimSpace(evaluatedUserID)
	if evaluatedUserID == "" {
		return nil, fmt.Errorf("evaluated user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, proposal_id, evaluator_user_id, evaluated_user_id, general_rating, comment, created_at
FROM evaluations
WHERE evaluated_user_id = ?
ORDER BY created_at ASC, id ASC
`, evaluatedUserID)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var records []storage.EvaluationRecord
	for rows.Next() {
		record, scanErr := scanEvaluation(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan evaluation row: %w", scanErr)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluation rows: %w", err)
	}

	for i := range records {
		ratings, err := s.listDimensionRatings(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].DimensionRatings = ratings
	}
	return records, nil
}

// ListDimensions lists the read-only evaluation dimension reference data.
func (s *Store) ListDimensions(ctx context.Context) ([]storage.DimensionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, name, weight FROM evaluation_dimensions ORDER BY id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list dimensions: %w", err)
	}
	defer rows.Close()

	var records []storage.DimensionRecord
	for rows.Next() {
		var record storage.DimensionRecord
		if err := rows.Scan(&record.ID, &record.Name, &record.Weight); err != nil {
			return nil, fmt.Errorf("scan dimension row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dimension rows: %w", err)
	}
	return records, nil
}

// SetUserReputation upserts one user reputation score.
func (s *Store) SetUserReputation(ctx context.Context, userID string, score float64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
	INSERT INTO user_reputation (user_id, score, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		score = excluded.score,
		updated_at = excluded.updated_at
	`, userID, score, toMillis(at))
	if err != nil {
		return fmt.Errorf("set user reputation: %w", err)
	}
	return nil
}

// GetUserReputation returns the stored score for one user.
func (s *Store) GetUserReputation(ctx context.Context, userID string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("user id is required")
	}

	var score float64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT score FROM user_reputation WHERE user_id = ?
`, userID).Scan(&score)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("get user reputation: %w", err)
	}
	return score, nil
}

func (s *Store) listDimensionRatings(ctx context.Context, evaluationID string) ([]storage.DimensionRatingRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT dimension_id, rating
FROM evaluation_dimension_ratings
WHERE evaluation_id = ?
ORDER BY dimension_id ASC
`, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("list dimension ratings: %w", err)
	}
	defer rows.Close()

	var ratings []storage.DimensionRatingRecord
	for rows.Next() {
		var rating storage.DimensionRatingRecord
		if err := rows.Scan(&rating.DimensionID, &rating.Rating); err != nil {
			return nil, fmt.Errorf("scan dimension rating row: %w", err)
		}
		ratings = append(ratings, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dimension rating rows: %w", err)
	}
	return ratings, nil
}

func (s *Store) exchangeTx(ctx context.Context, label string, fn func(tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", label, err)
	}
	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback %s: %v", err, label, rollbackErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", label, err)
	}
	return nil
}

const proposalSelect = `
SELECT id, proposer_user_id, receiver_user_id, offered_garment_id, requested_garment_id,
       message, state, priority, is_counteroffer, created_at, updated_at, responded_at, expires_at
FROM proposals`

type scanner func(dest ...any) error

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setGarmentAvailabilityExec(ctx context.Context, execer sqlExecer, garmentID string, from, to storage.Availability, at time.Time) (bool, error) {
	result, err := execer.ExecContext(ctx, `
UPDATE garments
SET availability = ?, updated_at = ?
WHERE id = ? AND availability = ?
`, to, toMillis(at), strings.TrimSpace(garmentID), from)
	if err != nil {
		return false, fmt.Errorf("set garment availability: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set garment availability rows affected: %w", err)
	}
	return affected > 0, nil
}

func requireRowChanged(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrStale
	}
	return nil
}

func normalizeGarmentRecord(record storage.GarmentRecord) (storage.GarmentRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.OwnerUserID = strings.TrimSpace(record.OwnerUserID)
	record.Title = strings.TrimSpace(record.Title)
	if record.ID == "" {
		return storage.GarmentRecord{}, fmt.Errorf("garment id is required")
	}
	if record.OwnerUserID == "" {
		return storage.GarmentRecord{}, fmt.Errorf("owner user id is required")
	}
	if record.Availability == "" {
		record.Availability = storage.AvailabilityAvailable
	}
	if record.CreatedAt.IsZero() {
		return storage.GarmentRecord{}, fmt.Errorf("created_at is required")
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}

func normalizeProposalRecord(record storage.ProposalRecord) (storage.ProposalRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.ProposerUserID = strings.TrimSpace(record.ProposerUserID)
	record.ReceiverUserID = strings.TrimSpace(record.ReceiverUserID)
	record.OfferedGarmentID = strings.TrimSpace(record.OfferedGarmentID)
	record.RequestedGarmentID = strings.TrimSpace(record.RequestedGarmentID)
	record.Message = strings.TrimSpace(record.Message)
	if record.ID == "" {
		return storage.ProposalRecord{}, fmt.Errorf("proposal id is required")
	}
	if record.ProposerUserID == "" || record.ReceiverUserID == "" {
		return storage.ProposalRecord{}, fmt.Errorf("proposal parties are required")
	}
	if record.OfferedGarmentID == "" || record.RequestedGarmentID == "" {
		return storage.ProposalRecord{}, fmt.Errorf("proposal garments are required")
	}
	if record.State == "" {
		record.State = storage.ProposalStatePending
	}
	if record.CreatedAt.IsZero() {
		return storage.ProposalRecord{}, fmt.Errorf("created_at is required")
	}
	if record.ExpiresAt.IsZero() {
		return storage.ProposalRecord{}, fmt.Errorf("expires_at is required")
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	record.ExpiresAt = record.ExpiresAt.UTC()
	if record.RespondedAt != nil {
		respondedAt := record.RespondedAt.UTC()
		record.RespondedAt = &respondedAt
	}
	return record, nil
}

func normalizeMessageRecord(record storage.MessageRecord) (storage.MessageRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.ProposalID = strings.TrimSpace(record.ProposalID)
	record.SenderUserID = strings.TrimSpace(record.SenderUserID)
	if record.ID == "" {
		return storage.MessageRecord{}, fmt.Errorf("message id is required")
	}
	if record.ProposalID == "" {
		return storage.MessageRecord{}, fmt.Errorf("proposal id is required")
	}
	if record.SenderUserID == "" {
		return storage.MessageRecord{}, fmt.Errorf("sender user id is required")
	}
	if record.Body == "" {
		return storage.MessageRecord{}, fmt.Errorf("message body is required")
	}
	if record.SentAt.IsZero() {
		return storage.MessageRecord{}, fmt.Errorf("sent_at is required")
	}
	record.SentAt = record.SentAt.UTC()
	if record.ReadAt != nil {
		readAt := record.ReadAt.UTC()
		record.ReadAt = &readAt
	}
	return record, nil
}

func normalizeEvaluationRecord(record storage.EvaluationRecord) (storage.EvaluationRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.ProposalID = strings.TrimSpace(record.ProposalID)
	record.EvaluatorUserID = strings.TrimSpace(record.EvaluatorUserID)
	record.EvaluatedUserID = strings.TrimSpace(record.EvaluatedUserID)
	record.Comment = strings.TrimSpace(record.Comment)
	if record.ID == "" {
		return storage.EvaluationRecord{}, fmt.Errorf("evaluation id is required")
	}
	if record.ProposalID == "" {
		return storage.EvaluationRecord{}, fmt.Errorf("proposal id is required")
	}
	if record.EvaluatorUserID == "" || record.EvaluatedUserID == "" {
		return storage.EvaluationRecord{}, fmt.Errorf("evaluation parties are required")
	}
	if record.GeneralRating < 1 || record.GeneralRating > 5 {
		return storage.EvaluationRecord{}, fmt.Errorf("general rating must be between 1 and 5")
	}
	if record.CreatedAt.IsZero() {
		return storage.EvaluationRecord{}, fmt.Errorf("created_at is required")
	}
	record.CreatedAt = record.CreatedAt.UTC()
	for _, rating := range record.DimensionRatings {
		if strings.TrimSpace(rating.DimensionID) == "" {
			return storage.EvaluationRecord{}, fmt.Errorf("dimension id is required")
		}
		if rating.Rating < 1 || rating.Rating > 5 {
			return storage.EvaluationRecord{}, fmt.Errorf("dimension rating must be between 1 and 5")
		}
	}
	return record, nil
}

func scanGarment(scan scanner) (storage.GarmentRecord, error) {
	var record storage.GarmentRecord
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&record.ID,
		&record.OwnerUserID,
		&record.Title,
		&record.Availability,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.GarmentRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func scanProposal(scan scanner) (storage.ProposalRecord, error) {
	var record storage.ProposalRecord
	var isCounteroffer int
	var createdAt int64
	var updatedAt int64
	var respondedAt sql.NullInt64
	var expiresAt int64
	if err := scan(
		&record.ID,
		&record.ProposerUserID,
		&record.ReceiverUserID,
		&record.OfferedGarmentID,
		&record.RequestedGarmentID,
		&record.Message,
		&record.State,
		&record.Priority,
		&isCounteroffer,
		&createdAt,
		&updatedAt,
		&respondedAt,
		&expiresAt,
	); err != nil {
		return storage.ProposalRecord{}, err
	}
	record.IsCounteroffer = isCounteroffer != 0
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	record.ExpiresAt = fromMillis(expiresAt)
	if respondedAt.Valid {
		value := fromMillis(respondedAt.Int64)
		record.RespondedAt = &value
	}
	return record, nil
}

func scanMessage(scan scanner) (storage.MessageRecord, error) {
	var record storage.MessageRecord
	var isSystem int
	var sentAt int64
	var readAt sql.NullInt64
	if err := scan(
		&record.ID,
		&record.ProposalID,
		&record.SenderUserID,
		&record.Body,
		&isSystem,
		&sentAt,
		&readAt,
	); err != nil {
		return storage.MessageRecord{}, err
	}
	record.System = isSystem != 0
	record.SentAt = fromMillis(sentAt)
	if readAt.Valid {
		value := fromMillis(readAt.Int64)
		record.ReadAt = &value
	}
	return record, nil
}

func scanEvaluation(scan scanner) (storage.EvaluationRecord, error) {
	var record storage.EvaluationRecord
	var createdAt int64
	if err := scan(
		&record.ID,
		&record.ProposalID,
		&record.EvaluatorUserID,
		&record.EvaluatedUserID,
		&record.GeneralRating,
		&record.Comment,
		&createdAt,
	); err != nil {
		return storage.EvaluationRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

func collectProposals(rows *sql.Rows) ([]storage.ProposalRecord, error) {
	var records []storage.ProposalRecord
	for rows.Next() {
		record, err := scanProposal(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan proposal row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposal rows: %w", err)
	}
	return records, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}

func isForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "foreign key constraint failed")
}
