package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chatfabric/chat-node/internal/domain/model"
	"github.com/jmoiron/sqlx"
)

// Interface guards
var (
	_ ParticipantRepository = (*MySQLParticipantRepository)(nil)
	_ MessageRepository     = (*MySQLMessageRepository)(nil)
)

// withTx runs fn inside a transaction. Rollback after a successful
// commit is a no-op, so the deferred call is unconditional.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type MySQLParticipantRepository struct {
	db *sqlx.DB
}

func NewMySQLParticipantRepository(db *sqlx.DB) *MySQLParticipantRepository {
	return &MySQLParticipantRepository{db: db}
}

func (r *MySQLParticipantRepository) HasIdentity(ctx context.Context, participantIdentifier string) (bool, error) {
	var exists bool
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM identity_tb WHERE participant_identifier = ?)",
			participantIdentifier)
	})
	if err != nil {
		return false, fmt.Errorf("has identity: %w", err)
	}
	return exists, nil
}

func (r *MySQLParticipantRepository) CreateIdentity(ctx context.Context, routingIdentifier, participantIdentifier string) error {
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO identity_tb (participant_identifier, routing_identifier) VALUES (?, ?)",
			participantIdentifier, routingIdentifier)
		return err
	})
	if err != nil {
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

type identityRow struct {
	ID                    int64  `db:"id"`
	ParticipantIdentifier string `db:"participant_identifier"`
	RoutingIdentifier     string `db:"routing_identifier"`
}

func (r *MySQLParticipantRepository) FetchIdentity(ctx context.Context, participantIdentifier string) (*model.Identity, error) {
	var row identityRow
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &row,
			"SELECT id, participant_identifier, routing_identifier FROM identity_tb WHERE participant_identifier = ?",
			participantIdentifier)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch identity: %w", err)
	}
	return &model.Identity{
		ID:                    row.ID,
		ParticipantIdentifier: row.ParticipantIdentifier,
		RoutingIdentifier:     row.RoutingIdentifier,
	}, nil
}

func (r *MySQLParticipantRepository) AddDevice(ctx context.Context, participantIdentifier string, device model.DeviceDetails) error {
	information, err := json.Marshal(map[string]string{
		"name":             device.Name,
		"operating_system": device.OperatingSystem,
		"version":          device.Version,
		"ip_address":       device.IPAddress,
	})
	if err != nil {
		return fmt.Errorf("encode device: %w", err)
	}

	err = withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var identityID int64
		err := tx.GetContext(ctx, &identityID,
			"SELECT id FROM identity_tb WHERE participant_identifier = ?",
			participantIdentifier)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrIdentityNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO device_information_tb (identity_id, information) VALUES (?, ?)",
			identityID, information)
		return err
	})
	if err != nil {
		return fmt.Errorf("add device: %w", err)
	}
	return nil
}

type MySQLMessageRepository struct {
	db *sqlx.DB
}

func NewMySQLMessageRepository(db *sqlx.DB) *MySQLMessageRepository {
	return &MySQLMessageRepository{db: db}
}

func (r *MySQLMessageRepository) AddMessage(ctx context.Context, record model.DirectMessageRecord) error {
	// Sender may live on another node and have no local identity row;
	// the scalar subselect then yields NULL, which the schema allows.
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO direct_message_tb (sender_id, target_id, message, received_at, node, marker)
			 VALUES (
			   (SELECT id FROM identity_tb WHERE routing_identifier = ?),
			   (SELECT id FROM identity_tb WHERE routing_identifier = ?),
			   ?, ?, ?, ?)`,
			record.Sender, record.Target,
			record.Message, record.ReceivedAt, record.Node, record.Marker)
		return err
	})
	if err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	return nil
}

type messageRow struct {
	ID         int64          `db:"id"`
	Sender     sql.NullString `db:"sender"`
	Target     string         `db:"target"`
	Message    []byte         `db:"message"`
	ReceivedAt sql.NullTime   `db:"received_at"`
	Node       string         `db:"node"`
	Marker     string         `db:"marker"`
}

func (r *MySQLMessageRepository) FetchParticipantMessages(ctx context.Context, participantIdentifier string, limit, offset int) ([]model.DirectMessageRecord, error) {
	var rows []messageRow
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &rows,
			`SELECT m.id, s.routing_identifier AS sender, t.routing_identifier AS target,
			        m.message, m.received_at, m.node, m.marker
			 FROM direct_message_tb m
			 JOIN identity_tb t ON t.id = m.target_id
			 LEFT JOIN identity_tb s ON s.id = m.sender_id
			 WHERE t.participant_identifier = ?
			 ORDER BY m.received_at DESC, m.id DESC
			 LIMIT ? OFFSET ?`,
			participantIdentifier, limit, offset)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	records := make([]model.DirectMessageRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, model.DirectMessageRecord{
			ID:         row.ID,
			Sender:     row.Sender.String,
			Target:     row.Target,
			Message:    row.Message,
			ReceivedAt: row.ReceivedAt.Time,
			Node:       row.Node,
			Marker:     row.Marker,
		})
	}
	return records, nil
}

func (r *MySQLMessageRepository) RemoveParticipantMessage(ctx context.Context, participantIdentifier string, messageID int64) error {
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`DELETE m FROM direct_message_tb m
			 JOIN identity_tb t ON t.id = m.target_id
			 WHERE t.participant_identifier = ? AND m.id = ?`,
			participantIdentifier, messageID)
		return err
	})
	if err != nil {
		return fmt.Errorf("remove message: %w", err)
	}
	return nil
}
