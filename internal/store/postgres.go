package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/serroba/email-tracker/internal/tracking"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var sendColumns = []string{
	"id", "tracking_id", "send_time", "subject", "recipient_email",
	"sender_ip", "sender_location", "owner_id",
}

// PostgresStore is a PostgreSQL implementation of tracking.Repository.
type PostgresStore struct {
	db DB
	tx *TxManager
}

// NewPostgresStore creates a new PostgreSQL-backed event store.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db, tx: NewTxManager(db)}
}

func (p *PostgresStore) InsertSend(ctx context.Context, send *tracking.SendEvent) error {
	query := `
		INSERT INTO sent_emails
			(tracking_id, send_time, subject, recipient_email, sender_ip, sender_location, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := p.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query,
			send.ID.String(),
			send.CreatedAt,
			nullableString(send.Subject),
			nullableString(send.RecipientEmail),
			nullableString(send.SenderIP),
			nullableString(send.SenderLocation),
			nullableString(string(send.Owner)),
		).Scan(&send.Key)
	})

	return mapError(err, "insert send "+send.ID.String())
}

func (p *PostgresStore) AppendOpen(ctx context.Context, id tracking.ID, open *tracking.OpenEvent) error {
	err := p.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		var sendKey int64

		err := tx.QueryRow(ctx,
			`SELECT id FROM sent_emails WHERE tracking_id = $1`,
			id.String(),
		).Scan(&sendKey)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO email_opens (sent_email_id, open_time, opener_ip, opener_location, user_agent)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`

		err = tx.QueryRow(ctx, query,
			sendKey,
			open.OpenedAt,
			nullableString(open.OpenerIP),
			nullableString(open.OpenerLocation),
			nullableString(open.UserAgent),
		).Scan(&open.Key)
		if err != nil {
			return err
		}

		open.SendKey = sendKey

		return nil
	})

	return mapError(err, "append open "+id.String())
}

func (p *PostgresStore) FindSendForOwner(
	ctx context.Context, id tracking.ID, owner tracking.OwnerID,
) (*tracking.Report, error) {
	sendSQL, sendArgs, err := psql.Select(sendColumns...).
		From("sent_emails").
		Where(sq.And{
			sq.Eq{"tracking_id": id.String()},
			sq.Eq{"owner_id": nullableString(string(owner))},
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build report query: %w", err)
	}

	var report tracking.Report

	err = p.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		send, err := scanSend(tx.QueryRow(ctx, sendSQL, sendArgs...))
		if err != nil {
			return err
		}

		opensSQL, opensArgs, err := psql.
			Select("id", "sent_email_id", "open_time", "opener_ip", "opener_location", "user_agent").
			From("email_opens").
			Where(sq.Eq{"sent_email_id": send.Key}).
			OrderBy("open_time ASC", "id ASC").
			ToSql()
		if err != nil {
			return fmt.Errorf("build opens query: %w", err)
		}

		rows, err := tx.Query(ctx, opensSQL, opensArgs...)
		if err != nil {
			return err
		}

		opens, err := pgx.CollectRows(rows, scanOpen)
		if err != nil {
			return err
		}

		report.Send = send
		report.Opens = opens

		return nil
	})
	if err != nil {
		return nil, mapError(err, "report "+id.String())
	}

	if report.Opens == nil {
		report.Opens = []tracking.OpenEvent{}
	}

	return &report, nil
}

func (p *PostgresStore) ListSendsForOwner(
	ctx context.Context, owner tracking.OwnerID, limit, offset int,
) ([]tracking.SendEvent, int, error) {
	byOwner := sq.Eq{"owner_id": nullableString(string(owner))}

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("sent_emails").Where(byOwner).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	listSQL, listArgs, err := psql.Select(sendColumns...).
		From("sent_emails").
		Where(byOwner).
		OrderBy("send_time DESC", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	var total int

	if err := p.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, mapError(err, "count sends")
	}

	rows, err := p.db.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, mapError(err, "list sends")
	}

	sends, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (tracking.SendEvent, error) {
		return scanSend(row)
	})
	if err != nil {
		return nil, 0, mapError(err, "list sends")
	}

	return sends, total, nil
}

func (p *PostgresStore) DeleteSend(ctx context.Context, id tracking.ID, owner tracking.OwnerID) error {
	deleteSQL, args, err := psql.Delete("sent_emails").
		Where(sq.And{
			sq.Eq{"tracking_id": id.String()},
			sq.Eq{"owner_id": nullableString(string(owner))},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}

	tag, err := p.db.Exec(ctx, deleteSQL, args...)
	if err != nil {
		return mapError(err, "delete "+id.String())
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s: %w", id, tracking.ErrNotFound)
	}

	return nil
}

func scanSend(row pgx.Row) (tracking.SendEvent, error) {
	var send tracking.SendEvent

	var trackingID string

	var sentAt time.Time

	var subject, recipient, senderIP, location, ownerID *string

	err := row.Scan(&send.Key, &trackingID, &sentAt, &subject, &recipient, &senderIP, &location, &ownerID)
	if err != nil {
		return tracking.SendEvent{}, err
	}

	send.ID = tracking.ID(trackingID)
	send.CreatedAt = sentAt.UTC()
	send.Subject = fromNullable(subject)
	send.RecipientEmail = fromNullable(recipient)
	send.SenderIP = fromNullable(senderIP)
	send.SenderLocation = fromNullable(location)
	send.Owner = tracking.OwnerID(fromNullable(ownerID))

	return send, nil
}

func scanOpen(row pgx.CollectableRow) (tracking.OpenEvent, error) {
	var open tracking.OpenEvent

	var openedAt time.Time

	var openerIP, location, userAgent *string

	err := row.Scan(&open.Key, &open.SendKey, &openedAt, &openerIP, &location, &userAgent)
	if err != nil {
		return tracking.OpenEvent{}, err
	}

	open.OpenedAt = openedAt.UTC()
	open.OpenerIP = fromNullable(openerIP)
	open.OpenerLocation = fromNullable(location)
	open.UserAgent = fromNullable(userAgent)

	return open, nil
}

// mapError translates pgx and PostgreSQL errors into tracking errors.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, tracking.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", op, tracking.ErrDuplicateID)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", op, tracking.ErrNotFound)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func fromNullable(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

// Compile-time check.
var _ tracking.Repository = (*PostgresStore)(nil)
