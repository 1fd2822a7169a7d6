package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-widget/internal/log"
	"chat-widget/internal/models"
)

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

// PostgresStore keeps messages in a table and follows changes with LISTEN/NOTIFY.
type PostgresStore struct {
	db      *sqlx.DB
	dsn     string
	table   string
	channel string
	listen  func(dsn string, report pq.EventCallbackType) notifyListener
}

// notifyListener is the part of pq.Listener the change feed uses.
type notifyListener interface {
	Listen(channel string) error
	Ping() error
	Close() error
	Notifications() <-chan *pq.Notification
}

type pqListener struct {
	*pq.Listener
}

func (l pqListener) Notifications() <-chan *pq.Notification {
	return l.Notify
}

func newPQListener(dsn string, report pq.EventCallbackType) notifyListener {
	return pqListener{pq.NewListener(dsn, listenerMinReconnect, listenerMaxReconnect, report)}
}

// NewPostgresStore constructs a PostgresStore. The table and its notify
// trigger are created by db.MigrateMessages.
func NewPostgresStore(db *sqlx.DB, dsn, table string) *PostgresStore {
	return &PostgresStore{db: db, dsn: dsn, table: table, channel: NotifyChannel(table), listen: newPQListener}
}

// NotifyChannel is the channel the change trigger of table notifies on.
func NotifyChannel(table string) string {
	return table + "_changes"
}

// Create inserts a message under a fresh id.
func (s *PostgresStore) Create(ctx context.Context, msg models.Message) (string, error) {
	id := uuid.NewString()
	query := fmt.Sprintf(`INSERT INTO %s (id, username, message, date) VALUES ($1, $2, $3, $4)`, s.table)
	if _, err := s.db.ExecContext(ctx, query, id, msg.Username, msg.Message, msg.Date.UTC()); err != nil {
		return "", wrap("create", "", err)
	}
	return id, nil
}

// Update replaces the text of a message.
func (s *PostgresStore) Update(ctx context.Context, id string, update models.MessageUpdate) error {
	query := fmt.Sprintf(`UPDATE %s SET message=$1 WHERE id=$2`, s.table)
	res, err := s.db.ExecContext(ctx, query, update.Message, id)
	if err != nil {
		return wrap("update", id, err)
	}
	return wrap("update", id, requireRow(res))
}

// Delete removes a message.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, s.table)
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return wrap("delete", id, err)
	}
	return wrap("delete", id, requireRow(res))
}

// QueryOrdered returns all messages ordered by date, then insertion order.
func (s *PostgresStore) QueryOrdered(ctx context.Context) ([]models.Message, error) {
	query := fmt.Sprintf(`SELECT id, username, message, date FROM %s ORDER BY date ASC, seq ASC`, s.table)
	var msgs []models.Message
	if err := s.db.SelectContext(ctx, &msgs, query); err != nil {
		return nil, wrap("query", "", err)
	}
	return msgs, nil
}

// Subscribe starts listening before the initial query so no change between
// the two is missed. A change already covered by the initial batch may be
// reported again as added.
func (s *PostgresStore) Subscribe(ctx context.Context, fn func(models.Batch)) error {
	logger := log.L().With().Str("channel", s.channel).Logger()
	listener := s.listen(s.dsn, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn().Err(err).Int("event", int(ev)).Msg("postgres listener event")
		}
	})
	if err := listener.Listen(s.channel); err != nil {
		_ = listener.Close()
		return wrap("subscribe", "", err)
	}

	msgs, err := s.QueryOrdered(ctx)
	if err != nil {
		_ = listener.Close()
		return wrap("subscribe", "", err)
	}
	initial := addedBatch(msgs)

	go func() {
		defer listener.Close()
		fn(initial)

		ticker := time.NewTicker(listenerPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notifications():
				if n == nil {
					// reconnected; notifications sent while disconnected are gone
					logger.Warn().Msg("postgres listener reconnected")
					continue
				}
				batch, err := s.changeFor(ctx, n.Extra)
				if err != nil {
					logger.Error().Err(err).Str("payload", n.Extra).Msg("resolve change")
					continue
				}
				if len(batch) > 0 {
					fn(batch)
				}
			case <-ticker.C:
				go func() {
					if err := listener.Ping(); err != nil {
						logger.Warn().Err(err).Msg("postgres listener ping")
					}
				}()
			}
		}
	}()
	return nil
}

type notifyPayload struct {
	Op string `json:"op"`
	ID string `json:"id"`
}

func parseNotify(payload string) (notifyPayload, error) {
	var p notifyPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return notifyPayload{}, fmt.Errorf("decode notification: %w", err)
	}
	if p.ID == "" {
		return notifyPayload{}, errors.New("decode notification: missing id")
	}
	return p, nil
}

func (s *PostgresStore) changeFor(ctx context.Context, payload string) (models.Batch, error) {
	p, err := parseNotify(payload)
	if err != nil {
		return nil, err
	}

	var changeType models.ChangeType
	switch p.Op {
	case "INSERT":
		changeType = models.ChangeAdded
	case "UPDATE":
		changeType = models.ChangeModified
	case "DELETE":
		return models.Batch{{Type: models.ChangeRemoved, ID: p.ID}}, nil
	default:
		return nil, fmt.Errorf("unknown notification op %q", p.Op)
	}

	msg, err := s.get(ctx, p.ID)
	if errors.Is(err, ErrNotFound) {
		// deleted before we could read it; the DELETE notification follows
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return models.Batch{{Type: changeType, ID: msg.ID, Message: msg}}, nil
}

func (s *PostgresStore) get(ctx context.Context, id string) (models.Message, error) {
	var msg models.Message
	query := fmt.Sprintf(`SELECT id, username, message, date FROM %s WHERE id=$1`, s.table)
	err := s.db.GetContext(ctx, &msg, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrNotFound
	}
	return msg, err
}

func requireRow(res sql.Result) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func addedBatch(msgs []models.Message) models.Batch {
	batch := make(models.Batch, 0, len(msgs))
	for _, msg := range msgs {
		batch = append(batch, models.ChangeEvent{Type: models.ChangeAdded, ID: msg.ID, Message: msg})
	}
	return batch
}
