// Package store persists decoded events into DuckDB, the embedded
// analytical engine the original implementation targets (see
// original_source/src/database.rs). A single writer lock serializes every
// mutation and every read, matching DuckDB's single-writer model (§4.2,
// §5).
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/rollupfed/indexer/internal/codec"
	"github.com/rollupfed/indexer/internal/workererr"
)

var tableDDL = []string{
	`CREATE TABLE IF NOT EXISTS rollups (
		rollup_id INTEGER PRIMARY KEY,
		network_name TEXT,
		latest_synced_block BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS bridge_events (
		id TEXT PRIMARY KEY,
		rollup_id INTEGER,
		transaction_hash TEXT,
		block_hash TEXT,
		block_number BIGINT,
		transaction_index INTEGER,
		log_index INTEGER,
		leaf_type INTEGER,
		origin_network INTEGER,
		origin_address TEXT,
		destination_network INTEGER,
		destination_address TEXT,
		amount TEXT,
		metadata TEXT,
		deposit_count INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS claim_events (
		id TEXT PRIMARY KEY,
		rollup_id INTEGER,
		transaction_hash TEXT,
		block_hash TEXT,
		block_number BIGINT,
		transaction_index INTEGER,
		log_index INTEGER,
		version INTEGER,
		global_index TEXT,
		origin_network INTEGER,
		origin_address TEXT,
		destination_address TEXT,
		amount TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS new_wrapped_token_events (
		id TEXT PRIMARY KEY,
		rollup_id INTEGER,
		transaction_hash TEXT,
		block_hash TEXT,
		block_number BIGINT,
		transaction_index INTEGER,
		log_index INTEGER,
		origin_network INTEGER,
		origin_token_address TEXT,
		wrapped_token_address TEXT,
		metadata TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS wrapped_transfer_events (
		id TEXT PRIMARY KEY,
		rollup_id INTEGER,
		transaction_hash TEXT,
		block_hash TEXT,
		block_number BIGINT,
		transaction_index INTEGER,
		log_index INTEGER,
		from_address TEXT,
		to_address TEXT,
		token_address TEXT,
		value TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS bridge_transfer_events (
		id TEXT PRIMARY KEY,
		rollup_id INTEGER,
		transaction_hash TEXT,
		block_hash TEXT,
		block_number BIGINT,
		transaction_index INTEGER,
		log_index INTEGER,
		from_address TEXT,
		to_address TEXT,
		token_address TEXT,
		value TEXT
	)`,
}

// Store is a shared, mutex-serialized handle onto the DuckDB file (or
// in-memory database). Many readers, serialized writes (§3 Ownership).
type Store struct {
	mu sync.Mutex
	db *sql.DB
	log log.Logger
}

// Open creates or opens the six tables described in §3. Idempotent: safe
// to call against an already-initialized database file.
func Open(path string, inMemory bool) (*Store, error) {
	dsn := path
	if inMemory {
		dsn = ":memory:"
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %q: %w", dsn, err)
	}
	s := &Store{db: db, log: log.New("component", "store")}
	for _, ddl := range tableDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("create table: %w", err)
		}
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertRollup inserts (id, name, -1) only if no row exists for id; it
// never overwrites an existing row's name (§4.2).
func (s *Store) UpsertRollup(id uint32, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	row := s.db.QueryRow(`SELECT COUNT(*) FROM rollups WHERE rollup_id = ?`, id)
	if err := row.Scan(&exists); err != nil {
		return workererr.NewStoreWrite(fmt.Errorf("check rollup %d: %w", id, err))
	}
	if exists > 0 {
		return nil
	}
	_, err := s.db.Exec(`INSERT INTO rollups (rollup_id, network_name, latest_synced_block) VALUES (?, ?, -1)`, id, name)
	if err != nil {
		return workererr.NewStoreWrite(fmt.Errorf("insert rollup %d: %w", id, err))
	}
	return nil
}

// LastIndexedBlock returns 0 when the row is missing or the stored value
// is NULL or negative, logging a diagnostic in the latter two cases (§4.2).
func (s *Store) LastIndexedBlock(id uint32) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var block sql.NullInt64
	row := s.db.QueryRow(`SELECT latest_synced_block FROM rollups WHERE rollup_id = ?`, id)
	if err := row.Scan(&block); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("last_indexed_block(%d): %w", id, err)
	}
	if !block.Valid {
		s.log.Warn("latest_synced_block is NULL", "rollup_id", id)
		return 0, nil
	}
	if block.Int64 < 0 {
		s.log.Warn("latest_synced_block is negative", "rollup_id", id, "value", block.Int64)
		return 0, nil
	}
	return uint64(block.Int64), nil
}

// SetLastIndexedBlock unconditionally advances the checkpoint for id.
func (s *Store) SetLastIndexedBlock(id uint32, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE rollups SET latest_synced_block = ? WHERE rollup_id = ?`, block, id)
	if err != nil {
		return workererr.NewStoreWrite(fmt.Errorf("set_last_indexed_block(%d, %d): %w", id, block, err))
	}
	return nil
}

// FetchWrappedTokens returns the distinct wrapped_token_address values
// seen so far for rollupID, used to rebuild a worker's in-memory set on
// restart (§3 Ownership).
func (s *Store) FetchWrappedTokens(rollupID uint32) ([]common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT DISTINCT wrapped_token_address FROM new_wrapped_token_events WHERE rollup_id = ?`, rollupID)
	if err != nil {
		return nil, fmt.Errorf("fetch_wrapped_tokens(%d): %w", rollupID, err)
	}
	defer rows.Close()

	var out []common.Address
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scan wrapped token: %w", err)
		}
		out = append(out, common.HexToAddress(addr))
	}
	return out, rows.Err()
}

func (s *Store) InsertBridgeEvent(e *codec.BridgeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT OR IGNORE INTO bridge_events (
		id, rollup_id, transaction_hash, block_hash, block_number, transaction_index, log_index,
		leaf_type, origin_network, origin_address, destination_network, destination_address,
		amount, metadata, deposit_count
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ContentID, e.RollupID, e.TxHash.Hex(), e.BlockHash.Hex(), e.BlockNumber, e.TxIndex, e.LogIndex,
		e.LeafType, e.OriginNetwork, lowerHex(e.OriginAddress), e.DestinationNetwork, lowerHex(e.DestinationAddress),
		e.Amount.String(), common.Bytes2Hex(e.Metadata), e.DepositCount,
	)
	if err != nil {
		return workererr.NewStoreWrite(fmt.Errorf("insert bridge_event %s: %w", e.ContentID, err))
	}
	return nil
}

func (s *Store) InsertClaimEvent(e *codec.ClaimEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT OR IGNORE INTO claim_events (
		id, rollup_id, transaction_hash, block_hash, block_number, transaction_index, log_index,
		version, global_index, origin_network, origin_address, destination_address, amount
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ContentID, e.RollupID, e.TxHash.Hex(), e.BlockHash.Hex(), e.BlockNumber, e.TxIndex, e.LogIndex,
		e.Version, e.GlobalIndex.String(), e.OriginNetwork, lowerHex(e.OriginAddress), lowerHex(e.DestinationAddress), e.Amount.String(),
	)
	if err != nil {
		return workererr.NewStoreWrite(fmt.Errorf("insert claim_event %s: %w", e.ContentID, err))
	}
	return nil
}

func (s *Store) InsertNewWrappedToken(e *codec.NewWrappedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT OR IGNORE INTO new_wrapped_token_events (
		id, rollup_id, transaction_hash, block_hash, block_number, transaction_index, log_index,
		origin_network, origin_token_address, wrapped_token_address, metadata
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ContentID, e.RollupID, e.TxHash.Hex(), e.BlockHash.Hex(), e.BlockNumber, e.TxIndex, e.LogIndex,
		e.OriginNetwork, lowerHex(e.OriginTokenAddress), lowerHex(e.WrappedTokenAddress), common.Bytes2Hex(e.Metadata),
	)
	if err != nil {
		return workererr.NewStoreWrite(fmt.Errorf("insert new_wrapped_token_event %s: %w", e.ContentID, err))
	}
	return nil
}

func (s *Store) InsertWrappedTransfer(e *codec.TransferEvent) error {
	return s.insertTransfer("wrapped_transfer_events", e)
}

func (s *Store) InsertBridgeTransfer(e *codec.TransferEvent) error {
	return s.insertTransfer("bridge_transfer_events", e)
}

func (s *Store) insertTransfer(table string, e *codec.TransferEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	query := fmt.Sprintf(`INSERT OR IGNORE INTO %s (
		id, rollup_id, transaction_hash, block_hash, block_number, transaction_index, log_index,
		from_address, to_address, token_address, value
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table)
	_, err := s.db.Exec(query,
		e.ContentID, e.RollupID, e.TxHash.Hex(), e.BlockHash.Hex(), e.BlockNumber, e.TxIndex, e.LogIndex,
		lowerHex(e.From), lowerHex(e.To), lowerHex(e.TokenAddress), e.Value.String(),
	)
	if err != nil {
		return workererr.NewStoreWrite(fmt.Errorf("insert %s %s: %w", table, e.ContentID, err))
	}
	return nil
}

// lowerHex canonicalizes an address to lowercase hex, per the §3 invariant
// that address strings compare and aggregate case-insensitively.
func lowerHex(a common.Address) string {
	return strings.ToLower(a.Hex())
}
