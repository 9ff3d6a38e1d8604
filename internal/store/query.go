package store

import (
	"database/sql"
	"fmt"
	"math/big"
	"strings"

	"github.com/rollupfed/indexer/internal/discovery"
)

// knownTables is the fixed set of table names exposed through the HTTP
// surface's introspection routes.
var knownTables = []string{
	"rollups",
	"bridge_events",
	"claim_events",
	"new_wrapped_token_events",
	"wrapped_transfer_events",
	"bridge_transfer_events",
}

// ListTables returns the analytical-store table names (§4.7 GET /tables).
func (s *Store) ListTables() []string {
	out := make([]string, len(knownTables))
	copy(out, knownTables)
	return out
}

// Columns discovers column names at runtime from DuckDB's table metadata,
// rather than hard-coding a schema per table (design notes, §9).
func (s *Store) Columns(table string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.columnsLocked(table)
}

func (s *Store) columnsLocked(table string) ([]string, error) {
	if !isKnownTable(table) {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	rows, err := s.db.Query(fmt.Sprintf(`PRAGMA table_info('%s')`, table))
	if err != nil {
		return nil, fmt.Errorf("table_info(%s): %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	nameIdx := indexOf(cols, "name")

	var out []string
	raw := make([]sql.RawBytes, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, string(raw[nameIdx]))
	}
	return out, rows.Err()
}

func indexOf(ss []string, v string) int {
	for i, s := range ss {
		if s == v {
			return i
		}
	}
	return -1
}

func isKnownTable(table string) bool {
	for _, t := range knownTables {
		if t == table {
			return true
		}
	}
	return false
}

// Rows returns up to limit rows of table as column-name -> value maps
// (§4.7 GET /table/{name}). limit <= 0 means unbounded.
func (s *Store) Rows(table string, limit int) ([]map[string]interface{}, error) {
	return s.FilterRows(table, nil, limit)
}

// FilterRows is Rows filtered by equality on each key/value in filters
// (§4.7 GET /table/{name}/filter). Values are bound as query parameters,
// not interpolated into the SQL text.
func (s *Store) FilterRows(table string, filters map[string]string, limit int) ([]map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !isKnownTable(table) {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	cols, err := s.columnsLocked(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s", table)
	var args []interface{}
	if len(filters) > 0 {
		conds := make([]string, 0, len(filters))
		for col, val := range filters {
			if !isKnownColumn(cols, col) {
				continue
			}
			conds = append(conds, fmt.Sprintf("%s = ?", col))
			args = append(args, val)
		}
		if len(conds) > 0 {
			query += " WHERE " + strings.Join(conds, " AND ")
		}
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func isKnownColumn(cols []string, col string) bool {
	for _, c := range cols {
		if c == col {
			return true
		}
	}
	return false
}

// scanRows materializes a *sql.Rows into column-name -> value maps,
// coercing every value to a JSON-friendly representation.
func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]interface{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]interface{}, len(cols))
		for i, c := range cols {
			m[c] = vals[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RawQuery runs an arbitrary SQL statement and returns its result rows.
// Rejecting mutating statements is the caller's responsibility (§4.2); the
// HTTP surface performs the keyword screen before calling this.
func (s *Store) RawQuery(q string) ([]map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// WrappedBalance computes the circulating supply of token on rollupID:
// sum(mints) - sum(burns) over wrapped_transfer_events (§4.7, invariant 4).
func (s *Store) WrappedBalance(rollupID uint32, token string) (*big.Int, error) {
	return s.signedBalance("wrapped_transfer_events", rollupID, token,
		"0x0000000000000000000000000000000000000000", true)
}

// BridgeBalance computes the bridge-held balance of token on rollupID:
// sum(in) - sum(out) over bridge_transfer_events, where the counterparty
// is the hard-coded L1 bridge address (§4.7).
func (s *Store) BridgeBalance(rollupID uint32, token string) (*big.Int, error) {
	return s.signedBalance("bridge_transfer_events", rollupID, token,
		discovery.L1BridgeAddress.Hex(), false)
}

// signedBalance sums CAST(value AS HUGEINT) with sign +1 when
// `counterparty` is `to_address` and -1 when it is `from_address` if
// fromIsPositive is false (bridge in minus out); fromIsPositive=true swaps
// the two (mint minus burn, with the zero address as counterparty),
// matching the CASE expressions in the original api.rs.
func (s *Store) signedBalance(table string, rollupID uint32, token, counterparty string, fromIsPositive bool) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plusCol, minusCol := "to_address", "from_address"
	if fromIsPositive {
		plusCol, minusCol = "from_address", "to_address"
	}

	// The SUM itself must stay HUGEINT-typed so it doesn't overflow a
	// narrower column; only the final aggregate is cast to VARCHAR, since
	// go-duckdb otherwise hands database/sql a *big.Int that sql.NullString
	// cannot Scan.
	query := fmt.Sprintf(`SELECT CAST(SUM(CASE
		WHEN LOWER(%s) = LOWER(?) THEN CAST(value AS HUGEINT)
		WHEN LOWER(%s) = LOWER(?) THEN -CAST(value AS HUGEINT)
		ELSE 0 END) AS VARCHAR) AS balance
	FROM %s WHERE LOWER(token_address) = LOWER(?) AND rollup_id = ?`, plusCol, minusCol, table)

	var balance sql.NullString
	row := s.db.QueryRow(query, counterparty, counterparty, token, rollupID)
	if err := row.Scan(&balance); err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", table, err)
	}
	result := new(big.Int)
	if balance.Valid && balance.String != "" {
		result.SetString(balance.String, 10)
	}
	return result, nil
}
