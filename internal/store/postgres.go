package store

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq" // database/sql driver used by the migrator
	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const changeChannel = "documents_changed"

// PostgresStore keeps documents as JSONB rows and relies on LISTEN/NOTIFY for
// change feeds.
type PostgresStore struct {
	pool *pgxpool.Pool
	hub  *hub
	now  func() time.Time
}

// Migrate applies the embedded schema migrations to databaseURL.
func Migrate(databaseURL string) error {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return errors.Wrap(err, "open migration connection")
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return errors.Wrap(err, "create migration driver")
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errors.Wrap(err, "load migrations")
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return errors.Wrap(err, "initialize migrations")
	}
	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}

// NewPostgresStore migrates the schema and opens a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string, maxConns int32) (*PostgresStore, error) {
	if err := Migrate(databaseURL); err != nil {
		return nil, err
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres config")
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create postgres pool")
	}
	p := &PostgresStore{pool: pool, now: time.Now}
	p.hub = newHub(p.List, p.feed)
	return p, nil
}

func (p *PostgresStore) Add(ctx context.Context, collection string, doc Document) (string, error) {
	id := uuid.NewString()
	if err := p.Set(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (p *PostgresStore) Set(ctx context.Context, collection, id string, doc Document) error {
	payload, err := json.Marshal(resolve(doc, p.now()))
	if err != nil {
		return errors.Wrap(err, "encode document")
	}
	_, err = p.pool.Exec(ctx,
		`insert into documents (collection, id, data, updated_at) values ($1, $2, $3, now())
		 on conflict (collection, id) do update set data = excluded.data, updated_at = now()`,
		collection, id, payload)
	return errors.Wrapf(err, "upsert %s/%s", collection, id)
}

func (p *PostgresStore) Get(ctx context.Context, collection, id string) (Record, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`select data from documents where collection = $1 and id = $2`, collection, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, errors.Wrapf(ErrNotFound, "%s/%s", collection, id)
	}
	if err != nil {
		return Record{}, errors.Wrapf(err, "select %s/%s", collection, id)
	}
	doc := Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Record{}, errors.Wrapf(err, "decode %s/%s", collection, id)
	}
	return Record{ID: id, Data: doc}, nil
}

func (p *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	tag, err := p.pool.Exec(ctx, `delete from documents where collection = $1 and id = $2`, collection, id)
	if err != nil {
		return errors.Wrapf(err, "delete %s/%s", collection, id)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrNotFound, "%s/%s", collection, id)
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, collection string, q Query) ([]Record, error) {
	rows, err := p.pool.Query(ctx, `select id, data from documents where collection = $1`, collection)
	if err != nil {
		return nil, errors.Wrapf(err, "select %s", collection)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, errors.Wrapf(err, "scan %s", collection)
		}
		doc := Document{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			logger.Warningf("store: skipping undecodable document %s/%s: %v", collection, id, err)
			continue
		}
		records = append(records, Record{ID: id, Data: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "iterate %s", collection)
	}
	return sortRecords(records, q), nil
}

func (p *PostgresStore) Subscribe(ctx context.Context, collection string, q Query, fn Listener) (Unsubscribe, error) {
	return p.hub.subscribe(ctx, collection, q, fn)
}

// feed holds the one connection that listens for changes on behalf of every
// subscriber.
func (p *PostgresStore) feed(ctx context.Context, ready func(), notify func(string)) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire listen connection")
	}
	// a connection that was listening must not go back to the pool
	listener := conn.Hijack()
	defer listener.Close(context.Background())

	if _, err := listener.Exec(ctx, "listen "+changeChannel); err != nil {
		return errors.Wrap(err, "listen")
	}
	ready()

	for {
		n, err := listener.WaitForNotification(ctx)
		if err != nil {
			return errors.Wrap(err, "wait for notification")
		}
		notify(n.Payload)
	}
}

func (p *PostgresStore) Close() error {
	p.hub.close()
	p.pool.Close()
	return nil
}
