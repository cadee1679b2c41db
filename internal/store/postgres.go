package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/park285/chess-arena/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

type postgres struct {
	db *sql.DB
}

// OpenPostgres connects, verifies the connection and ensures the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &postgres{db: db}, nil
}

func (r *postgres) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *postgres) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

const userColumns = `email, username, is_admin, elo, state`

type scanner interface{ Scan(dest ...any) error }

func scanUser(s scanner) (domain.User, error) {
	var u domain.User
	var state string
	if err := s.Scan(&u.Email, &u.Username, &u.IsAdmin, &u.Elo, &state); err != nil {
		return domain.User{}, err
	}
	st, ok := domain.ParseUserState(state)
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: unknown state %q", u.Email, state)
	}
	u.State = st
	return u, nil
}

func (r *postgres) CreateUser(ctx context.Context, u domain.User) error {
	u.Email = domain.NormalizeEmail(u.Email)
	if u.Email == "" {
		return fmt.Errorf("create user: empty email")
	}
	if u.State == "" {
		u.State = domain.StateNone
	}
	if u.Elo == 0 {
		u.Elo = domain.DefaultElo
	}
	const q = `INSERT INTO arena_users (email, username, is_admin, elo, state) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, q, u.Email, u.Username, u.IsAdmin, u.Elo, string(u.State)); err != nil {
		return fmt.Errorf("create user %s: %w", u.Email, err)
	}
	return nil
}

func (r *postgres) GetUser(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM arena_users WHERE email = $1`, domain.NormalizeEmail(email))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *postgres) SetState(ctx context.Context, email string, state domain.UserState) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE arena_users SET state = $2, updated_at = now() WHERE email = $1`,
		domain.NormalizeEmail(email), string(state))
	if err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return expectOne(res, domain.ErrUserNotFound)
}

func (r *postgres) CompareAndSetState(ctx context.Context, email string, from, to domain.UserState) (domain.User, error) {
	email = domain.NormalizeEmail(email)
	row := r.db.QueryRowContext(ctx,
		`UPDATE arena_users SET state = $3, updated_at = now()
		 WHERE email = $1 AND state = $2
		 RETURNING `+userColumns,
		email, string(from), string(to))
	u, err := scanUser(row)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("compare and set state: %w", err)
	}
	cur, gerr := r.GetUser(ctx, email)
	if gerr != nil {
		return domain.User{}, gerr
	}
	return cur, ErrStateConflict
}

func (r *postgres) SetElo(ctx context.Context, email string, elo int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE arena_users SET elo = $2, updated_at = now() WHERE email = $1`,
		domain.NormalizeEmail(email), elo)
	if err != nil {
		return fmt.Errorf("set elo: %w", err)
	}
	return expectOne(res, domain.ErrUserNotFound)
}

func (r *postgres) ListActive(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM arena_users WHERE state <> 'deleted' ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *postgres) ResetTransient(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE arena_users SET state = 'none', updated_at = now() WHERE state IN ('queued', 'game')`)
	if err != nil {
		return 0, fmt.Errorf("reset transient states: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// MarkDeleted locks every target row, checks all of them and only then
// updates, inside one transaction.
func (r *postgres) MarkDeleted(ctx context.Context, emails []string) ([]domain.User, error) {
	targets := uniqueEmails(emails)
	if len(targets) == 0 {
		return nil, nil
	}
	var out []domain.User
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+userColumns+` FROM arena_users WHERE email = ANY($1) ORDER BY email FOR UPDATE`,
			pq.Array(targets))
		if err != nil {
			return fmt.Errorf("lock users: %w", err)
		}
		found := make(map[string]domain.User, len(targets))
		for rows.Next() {
			u, serr := scanUser(rows)
			if serr != nil {
				rows.Close()
				return serr
			}
			found[u.Email] = u
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, e := range targets {
			u, ok := found[e]
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrUserNotFound, e)
			}
			if err := deletable(u); err != nil {
				return fmt.Errorf("%w: %s", err, e)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE arena_users SET state = 'deleted', updated_at = now() WHERE email = ANY($1)`,
			pq.Array(targets)); err != nil {
			return fmt.Errorf("mark deleted: %w", err)
		}
		for _, e := range targets {
			u := found[e]
			u.State = domain.StateDeleted
			out = append(out, u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postgres) CompleteGame(ctx context.Context, c domain.Completion) (domain.User, domain.User, error) {
	g := c.Game
	var white, black domain.User
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+userColumns+` FROM arena_users WHERE email = ANY($1) ORDER BY email FOR UPDATE`,
			pq.Array([]string{g.WhitePlayer, g.BlackPlayer}))
		if err != nil {
			return fmt.Errorf("lock players: %w", err)
		}
		locked := map[string]domain.User{}
		for rows.Next() {
			u, serr := scanUser(rows)
			if serr != nil {
				rows.Close()
				return serr
			}
			locked[u.Email] = u
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		var ok bool
		if white, ok = locked[g.WhitePlayer]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrUserNotFound, g.WhitePlayer)
		}
		if black, ok = locked[g.BlackPlayer]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrUserNotFound, g.BlackPlayer)
		}
		checkSnapshot(g.ID, white, c.WhiteEloBefore)
		checkSnapshot(g.ID, black, c.BlackEloBefore)

		const upd = `UPDATE arena_users SET elo = $2, state = 'none', updated_at = now() WHERE email = $1`
		if _, err := tx.ExecContext(ctx, upd, g.WhitePlayer, c.WhiteEloAfter); err != nil {
			return fmt.Errorf("update white: %w", err)
		}
		if _, err := tx.ExecContext(ctx, upd, g.BlackPlayer, c.BlackEloAfter); err != nil {
			return fmt.Errorf("update black: %w", err)
		}
		const ins = `INSERT INTO arena_games (
			game_id, white_email, black_email, white_name, black_name,
			winner, reason, started_at, ended_at, time_limit_ms,
			pgn, final_fen, white_elo_before, black_elo_before, white_elo_after, black_elo_after
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (game_id) DO NOTHING`
		res, err := tx.ExecContext(ctx, ins,
			g.ID, g.WhitePlayer, g.BlackPlayer, g.WhiteUsername, g.BlackUsername,
			string(g.Winner), g.Reason, g.StartTime, g.EndTime, g.TimeLimitMs,
			g.PGN, g.FinalFEN, g.WhiteEloBefore, g.BlackEloBefore, g.WhiteEloAfter, g.BlackEloAfter,
		)
		if err != nil {
			return fmt.Errorf("insert game: %w", err)
		}
		if err := expectOne(res, ErrDuplicateGame); err != nil {
			return err
		}
		white.Elo, white.State = c.WhiteEloAfter, domain.StateNone
		black.Elo, black.State = c.BlackEloAfter, domain.StateNone
		return nil
	})
	if err != nil {
		return domain.User{}, domain.User{}, err
	}
	return white, black, nil
}

const gameColumns = `game_id, white_email, black_email, white_name, black_name,
	winner, reason, started_at, ended_at, time_limit_ms,
	pgn, final_fen, white_elo_before, black_elo_before, white_elo_after, black_elo_after`

func scanGame(s scanner) (domain.HistoricalGame, error) {
	var g domain.HistoricalGame
	var winner string
	err := s.Scan(&g.ID, &g.WhitePlayer, &g.BlackPlayer, &g.WhiteUsername, &g.BlackUsername,
		&winner, &g.Reason, &g.StartTime, &g.EndTime, &g.TimeLimitMs,
		&g.PGN, &g.FinalFEN, &g.WhiteEloBefore, &g.BlackEloBefore, &g.WhiteEloAfter, &g.BlackEloAfter)
	if err != nil {
		return domain.HistoricalGame{}, err
	}
	g.Winner = domain.Result(winner)
	return g, nil
}

// GamesByUser streams rows as the caller ranges; each range runs the query again.
func (r *postgres) GamesByUser(ctx context.Context, email string) iter.Seq2[domain.HistoricalGame, error] {
	email = domain.NormalizeEmail(email)
	return func(yield func(domain.HistoricalGame, error) bool) {
		rows, err := r.db.QueryContext(ctx,
			`SELECT `+gameColumns+` FROM arena_games
			 WHERE white_email = $1 OR black_email = $1
			 ORDER BY started_at ASC, game_id ASC`, email)
		if err != nil {
			yield(domain.HistoricalGame{}, fmt.Errorf("query games: %w", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			g, err := scanGame(rows)
			if err != nil {
				yield(domain.HistoricalGame{}, err)
				return
			}
			if !yield(g, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(domain.HistoricalGame{}, err)
		}
	}
}

func (r *postgres) Game(ctx context.Context, id string) (domain.HistoricalGame, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM arena_games WHERE game_id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.HistoricalGame{}, domain.ErrGameNotFound
	}
	if err != nil {
		return domain.HistoricalGame{}, fmt.Errorf("get game: %w", err)
	}
	return g, nil
}

func (r *postgres) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
