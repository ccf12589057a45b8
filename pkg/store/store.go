// Package store persists the assistant's simple entities (shopping items,
// tasks, agenda entries) in Postgres.
package store

import (
	"context"
	"embed"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/aura-voice/aura/pkg/core"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store wraps a pgx pool with the entity CRUD the tool dispatch needs.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects, pings, and migrates the database.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, core.NewStoreError("open database", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, core.NewStoreError("ping database", err)
	}
	if err := migrate(pool); err != nil {
		pool.Close()
		return nil, core.NewStoreError("migrate database", err)
	}
	return &Store{pool: pool}, nil
}

func migrate(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// ShoppingItem is one entry on the shopping list.
type ShoppingItem struct {
	ID        uuid.UUID
	Name      string
	Done      bool
	CreatedAt time.Time
}

// ShoppingItems lists the shopping list, oldest first.
func (s *Store) ShoppingItems(ctx context.Context) ([]ShoppingItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, done, created_at FROM shopping_items ORDER BY created_at`)
	if err != nil {
		return nil, core.NewStoreError("load shopping items", err)
	}
	defer rows.Close()

	var items []ShoppingItem
	for rows.Next() {
		var it ShoppingItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Done, &it.CreatedAt); err != nil {
			return nil, core.NewStoreError("scan shopping item", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// AddItem appends a shopping item. Satisfies the tool dispatch's ShoppingAdder.
func (s *Store) AddItem(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO shopping_items (id, name) VALUES ($1, $2)`,
		uuid.New(), name)
	if err != nil {
		return core.NewStoreError("add shopping item", err)
	}
	return nil
}

// ToggleItem flips an item's done flag.
func (s *Store) ToggleItem(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE shopping_items SET done = NOT done WHERE id = $1`, id)
	if err != nil {
		return core.NewStoreError("toggle shopping item", err)
	}
	return nil
}

// DeleteItem removes an item.
func (s *Store) DeleteItem(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM shopping_items WHERE id = $1`, id)
	if err != nil {
		return core.NewStoreError("delete shopping item", err)
	}
	return nil
}

// Task is one todo entry.
type Task struct {
	ID        uuid.UUID
	Title     string
	Done      bool
	CreatedAt time.Time
}

// Tasks lists tasks, oldest first.
func (s *Store) Tasks(ctx context.Context) ([]Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, done, created_at FROM tasks ORDER BY created_at`)
	if err != nil {
		return nil, core.NewStoreError("load tasks", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var tk Task
		if err := rows.Scan(&tk.ID, &tk.Title, &tk.Done, &tk.CreatedAt); err != nil {
			return nil, core.NewStoreError("scan task", err)
		}
		tasks = append(tasks, tk)
	}
	return tasks, rows.Err()
}

// AddTask appends a task.
func (s *Store) AddTask(ctx context.Context, title string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tasks (id, title) VALUES ($1, $2)`, uuid.New(), title)
	if err != nil {
		return core.NewStoreError("add task", err)
	}
	return nil
}

// ToggleTask flips a task's done flag.
func (s *Store) ToggleTask(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE tasks SET done = NOT done WHERE id = $1`, id)
	if err != nil {
		return core.NewStoreError("toggle task", err)
	}
	return nil
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return core.NewStoreError("delete task", err)
	}
	return nil
}

// AgendaEntry is one calendar entry.
type AgendaEntry struct {
	ID        uuid.UUID
	Title     string
	StartsAt  time.Time
	CreatedAt time.Time
}

// Agenda lists entries starting soonest first.
func (s *Store) Agenda(ctx context.Context) ([]AgendaEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, starts_at, created_at FROM agenda_entries ORDER BY starts_at`)
	if err != nil {
		return nil, core.NewStoreError("load agenda", err)
	}
	defer rows.Close()

	var entries []AgendaEntry
	for rows.Next() {
		var e AgendaEntry
		if err := rows.Scan(&e.ID, &e.Title, &e.StartsAt, &e.CreatedAt); err != nil {
			return nil, core.NewStoreError("scan agenda entry", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddAgendaEntry schedules an entry.
func (s *Store) AddAgendaEntry(ctx context.Context, title string, startsAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agenda_entries (id, title, starts_at) VALUES ($1, $2, $3)`,
		uuid.New(), title, startsAt)
	if err != nil {
		return core.NewStoreError("add agenda entry", err)
	}
	return nil
}

// DeleteAgendaEntry removes an entry.
func (s *Store) DeleteAgendaEntry(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM agenda_entries WHERE id = $1`, id)
	if err != nil {
		return core.NewStoreError("delete agenda entry", err)
	}
	return nil
}
