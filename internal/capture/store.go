package capture

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eolink-project/eolink/internal/events"
)

var (
	ErrNotFound    = errors.New("capture: not found")
	ErrSessionFull = errors.New("capture: session packet limit reached")
)

// Session is a named capture with the codec parameters its packets were
// recorded under.
type Session struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Direction     string    `json:"direction"`
	SendMultiple  int       `json:"send_multiple"`
	RecvMultiple  int       `json:"recv_multiple"`
	SequenceStart int       `json:"sequence_start"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	PacketCount   int64     `json:"packet_count"`
}

// Packet is one captured packet and what decoding it produced.
type Packet struct {
	ID        int64          `json:"id"`
	SessionID int64          `json:"session_id"`
	Index     int64          `json:"index"`
	Raw       []byte         `json:"raw"`
	Plain     []byte         `json:"plain"`
	Family    byte           `json:"family"`
	Action    byte           `json:"action"`
	Sequence  int            `json:"sequence"`
	Verdict   events.Verdict `json:"verdict"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Stats summarizes the store.
type Stats struct {
	Sessions   int64 `json:"sessions"`
	Packets    int64 `json:"packets"`
	Mismatches int64 `json:"mismatches"`
	Malformed  int64 `json:"malformed"`
}

// Store is the capture repository.
type Store struct {
	db         *Database
	maxPackets int
}

// NewStore opens the database at path and migrates it. maxPackets caps
// the packets kept per session; zero means no cap.
func NewStore(path string, maxPackets int) (*Store, error) {
	database, err := OpenDatabase(path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: database, maxPackets: maxPackets}
	if err := s.migrate(context.Background()); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate capture database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Database exposes the underlying database for maintenance tasks.
func (s *Store) Database() *Database {
	return s.db
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			direction TEXT NOT NULL,
			send_multiple INTEGER NOT NULL DEFAULT 0,
			recv_multiple INTEGER NOT NULL DEFAULT 0,
			sequence_start INTEGER NOT NULL DEFAULT 0,
			notes TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS packets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			raw BLOB NOT NULL,
			plain BLOB,
			family INTEGER NOT NULL DEFAULT 0,
			action INTEGER NOT NULL DEFAULT 0,
			sequence INTEGER NOT NULL DEFAULT -1,
			verdict TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			UNIQUE (session_id, idx),
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_packets_session ON packets(session_id, idx);
		CREATE INDEX IF NOT EXISTS idx_packets_verdict ON packets(verdict);
		CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
	`
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	log.Debug().Msg("capture schema migrated")
	return nil
}

// CreateSession inserts sess and returns its id. CreatedAt defaults to now.
func (s *Store) CreateSession(ctx context.Context, sess Session) (int64, error) {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	res, err := s.db.Exec(ctx, `
		INSERT INTO sessions (name, direction, send_multiple, recv_multiple, sequence_start, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.Name, sess.Direction, sess.SendMultiple, sess.RecvMultiple, sess.SequenceStart, sess.Notes,
		sess.CreatedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to create session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	log.Info().
		Int64("session_id", id).
		Str("name", sess.Name).
		Str("direction", sess.Direction).
		Msg("capture session created")
	return id, nil
}

const sessionColumns = `
	s.id, s.name, s.direction, s.send_multiple, s.recv_multiple, s.sequence_start, s.notes, s.created_at,
	(SELECT COUNT(*) FROM packets p WHERE p.session_id = s.id)`

func scanSession(row interface{ Scan(...interface{}) error }) (Session, error) {
	var sess Session
	var created int64
	err := row.Scan(&sess.ID, &sess.Name, &sess.Direction, &sess.SendMultiple, &sess.RecvMultiple,
		&sess.SequenceStart, &sess.Notes, &created, &sess.PacketCount)
	sess.CreatedAt = time.Unix(created, 0)
	return sess, err
}

// GetSession returns one session.
func (s *Store) GetSession(ctx context.Context, id int64) (*Session, error) {
	row := s.db.QueryRow(ctx, "SELECT "+sessionColumns+" FROM sessions s WHERE s.id = ?", id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %d: %w", id, err)
	}
	return &sess, nil
}

// ListSessions returns every session, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.Query(ctx, "SELECT "+sessionColumns+" FROM sessions s ORDER BY s.created_at DESC, s.id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and its packets.
func (s *Store) DeleteSession(ctx context.Context, id int64) error {
	res, err := s.db.Exec(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	log.Info().Int64("session_id", id).Msg("capture session deleted")
	return nil
}

// AddPacket appends p to its session and returns the stored packet with
// ID and Index filled in.
func (s *Store) AddPacket(ctx context.Context, p Packet) (*Packet, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE id = ?", p.SessionID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("session %d: %w", p.SessionID, ErrNotFound)
		}

		var count, next int64
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*), COALESCE(MAX(idx) + 1, 0) FROM packets WHERE session_id = ?", p.SessionID).
			Scan(&count, &next)
		if err != nil {
			return err
		}
		if s.maxPackets > 0 && count >= int64(s.maxPackets) {
			return fmt.Errorf("session %d has %d packets: %w", p.SessionID, count, ErrSessionFull)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO packets (session_id, idx, raw, plain, family, action, sequence, verdict, error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.SessionID, next, p.Raw, p.Plain, int(p.Family), int(p.Action), p.Sequence,
			p.Verdict.String(), p.Error, p.CreatedAt.Unix())
		if err != nil {
			return err
		}
		p.ID, err = res.LastInsertId()
		p.Index = next
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store packet: %w", err)
	}
	return &p, nil
}

// ListPackets returns up to limit packets of a session starting at the
// given index offset. A limit of zero or less means all.
func (s *Store) ListPackets(ctx context.Context, sessionID int64, offset, limit int) ([]Packet, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, idx, raw, plain, family, action, sequence, verdict, error, created_at
		FROM packets WHERE session_id = ? ORDER BY idx LIMIT ? OFFSET ?`,
		sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list packets: %w", err)
	}
	defer rows.Close()

	packets := []Packet{}
	for rows.Next() {
		var (
			p              Packet
			family, action int
			verdict        string
			created        int64
		)
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Index, &p.Raw, &p.Plain, &family, &action,
			&p.Sequence, &verdict, &p.Error, &created); err != nil {
			return nil, fmt.Errorf("failed to scan packet: %w", err)
		}
		p.Family, p.Action = byte(family), byte(action)
		p.Verdict, _ = events.ParseVerdict(verdict)
		p.CreatedAt = time.Unix(created, 0)
		packets = append(packets, p)
	}
	return packets, rows.Err()
}

// PruneBefore deletes sessions created before cutoff and returns how many
// were removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(ctx, "DELETE FROM sessions WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Stats counts sessions, packets and failed packets.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sessions),
			(SELECT COUNT(*) FROM packets),
			(SELECT COUNT(*) FROM packets WHERE verdict = ?),
			(SELECT COUNT(*) FROM packets WHERE verdict = ?)`,
		events.VerdictSequenceMismatch.String(), events.VerdictMalformed.String()).
		Scan(&st.Sessions, &st.Packets, &st.Mismatches, &st.Malformed)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read stats: %w", err)
	}
	return st, nil
}

// Vacuum compacts the database file.
func (s *Store) Vacuum(ctx context.Context) error {
	_, err := s.db.Exec(ctx, "VACUUM")
	return err
}
