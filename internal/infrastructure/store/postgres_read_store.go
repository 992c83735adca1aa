package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/marketplace/internal/readmodel"
)

// PostgresReadStore keeps every read model as a JSONB document in the
// read_models table, keyed by (collection, id).
type PostgresReadStore struct {
	db *sqlx.DB
}

func NewPostgresReadStore(db *sqlx.DB) *PostgresReadStore {
	return &PostgresReadStore{db: db}
}

func (rs *PostgresReadStore) Set(collection, id string, data any) error {
	doc, err := json.Marshal(data)
	if err != nil {
		return errors.Wrapf(err, "marshal %s/%s", collection, id)
	}
	_, err = rs.db.Exec(
		`INSERT INTO read_models (collection, id, data, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		collection, id, doc, time.Now().UTC(),
	)
	return errors.Wrapf(err, "set %s/%s", collection, id)
}

func (rs *PostgresReadStore) Get(collection, id string) (any, bool, error) {
	var doc []byte
	err := rs.db.Get(&doc, `SELECT data FROM read_models WHERE collection = $1 AND id = $2`, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get %s/%s", collection, id)
	}
	model, err := decode(collection, doc)
	if err != nil {
		return nil, false, err
	}
	return model, true, nil
}

func (rs *PostgresReadStore) GetAll(collection string) ([]any, error) {
	var docs [][]byte
	if err := rs.db.Select(&docs, `SELECT data FROM read_models WHERE collection = $1 ORDER BY id`, collection); err != nil {
		return nil, errors.Wrapf(err, "list %s", collection)
	}
	items := make([]any, 0, len(docs))
	for _, doc := range docs {
		model, err := decode(collection, doc)
		if err != nil {
			return nil, err
		}
		items = append(items, model)
	}
	return items, nil
}

func (rs *PostgresReadStore) Delete(collection, id string) error {
	_, err := rs.db.Exec(`DELETE FROM read_models WHERE collection = $1 AND id = $2`, collection, id)
	return errors.Wrapf(err, "delete %s/%s", collection, id)
}

// Update locks the row for the duration of updateFn.
func (rs *PostgresReadStore) Update(collection, id string, updateFn func(current any) any) (bool, error) {
	tx, err := rs.db.Beginx()
	if err != nil {
		return false, errors.Wrap(err, "begin update")
	}
	defer tx.Rollback()

	var doc []byte
	err = tx.Get(&doc, `SELECT data FROM read_models WHERE collection = $1 AND id = $2 FOR UPDATE`, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "load %s/%s", collection, id)
	}

	current, err := decode(collection, doc)
	if err != nil {
		return false, err
	}
	updated, err := json.Marshal(updateFn(current))
	if err != nil {
		return false, errors.Wrapf(err, "marshal %s/%s", collection, id)
	}

	if _, err := tx.Exec(
		`UPDATE read_models SET data = $3, updated_at = $4 WHERE collection = $1 AND id = $2`,
		collection, id, updated, time.Now().UTC(),
	); err != nil {
		return false, errors.Wrapf(err, "update %s/%s", collection, id)
	}
	return true, errors.Wrap(tx.Commit(), "commit update")
}

func decode(collection string, doc []byte) (any, error) {
	model, ok := readmodel.New(collection)
	if !ok {
		return nil, errors.Errorf("unknown read model collection %q", collection)
	}
	if err := json.Unmarshal(doc, model); err != nil {
		return nil, errors.Wrapf(err, "decode %s", collection)
	}
	return model, nil
}
