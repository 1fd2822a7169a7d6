package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"chat-widget/internal/log"
)

// Connect opens the database and creates the message table.
func Connect(dsn, table string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := MigrateMessages(db, table); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// MigrateMessages creates table, its ordering index and the trigger that
// notifies <table>_changes on every insert, update and delete.
func MigrateMessages(db *sqlx.DB, table string) error {
	for _, m := range messageMigrations(table) {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.L().Info().Str("table", table).Msg("database migrations applied")
	return nil
}

func messageMigrations(table string) []string {
	channel := table + "_changes"
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            seq BIGSERIAL,
            id TEXT PRIMARY KEY,
            username TEXT NOT NULL DEFAULT '',
            message TEXT NOT NULL,
            date TIMESTAMPTZ NOT NULL
        );`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_date_seq_idx ON %s (date, seq);`, table, table),
		fmt.Sprintf(`CREATE OR REPLACE FUNCTION %s_notify() RETURNS trigger AS $$
        BEGIN
            IF TG_OP = 'DELETE' THEN
                PERFORM pg_notify('%s', json_build_object('op', TG_OP, 'id', OLD.id)::text);
                RETURN OLD;
            END IF;
            PERFORM pg_notify('%s', json_build_object('op', TG_OP, 'id', NEW.id)::text);
            RETURN NEW;
        END;
        $$ LANGUAGE plpgsql;`, table, channel, channel),
		fmt.Sprintf(`DROP TRIGGER IF EXISTS %s_notify_trigger ON %s;`, table, table),
		fmt.Sprintf(`CREATE TRIGGER %s_notify_trigger
            AFTER INSERT OR UPDATE OR DELETE ON %s
            FOR EACH ROW EXECUTE FUNCTION %s_notify();`, table, table, table),
	}
}
