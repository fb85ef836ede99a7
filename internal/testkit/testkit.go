// Package testkit provides the shared banking-schema fixture used across
// package tests: parsed metadata and a seeded on-disk SQLite database.
package testkit

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"nl2sql/internal/metadata"
)

// MetadataJSON is the banking schema metadata used by the tests.
const MetadataJSON = `{
  "tables": {
    "branches": {
      "description": "Bank branch locations",
      "columns": {
        "id": {"type": "integer", "primary_key": true},
        "name": {"type": "text", "required": true},
        "city": {"type": "text", "required": true},
        "state": {"type": "text", "distinct_values": ["CA", "NY", "TX"]},
        "manager_id": {"type": "integer"}
      },
      "foreign_keys": [
        {"column": "manager_id", "references": "employees.id"}
      ]
    },
    "employees": {
      "description": "Bank staff",
      "columns": {
        "id": {"type": "integer", "primary_key": true},
        "name": {"type": "text", "required": true},
        "position": {"type": "text", "distinct_values": ["Branch Manager", "Teller", "Loan Officer"]},
        "salary": {"type": "real", "required": true},
        "branch_id": {"type": "integer"},
        "hire_date": {"type": "text"}
      },
      "foreign_keys": [
        {"column": "branch_id", "references": "branches.id"}
      ]
    },
    "customers": {
      "description": "People who hold accounts",
      "columns": {
        "id": {"type": "integer", "primary_key": true},
        "first_name": {"type": "text", "required": true},
        "last_name": {"type": "text", "required": true},
        "email": {"type": "text"},
        "phone": {"type": "text"},
        "branch_id": {"type": "integer"}
      },
      "foreign_keys": [
        {"column": "branch_id", "references": "branches.id"}
      ]
    },
    "accounts": {
      "description": "Banking accounts",
      "columns": {
        "id": {"type": "integer", "primary_key": true},
        "customer_id": {"type": "integer", "required": true},
        "branch_id": {"type": "integer"},
        "type": {"type": "text", "distinct_values": ["checking", "savings"]},
        "balance": {"type": "real", "required": true, "typical_high": 20000},
        "status": {"type": "text", "distinct_values": ["active", "closed", "frozen"]},
        "opened_date": {"type": "text"}
      },
      "foreign_keys": [
        {"column": "customer_id", "references": "customers.id"},
        {"column": "branch_id", "references": "branches.id"}
      ]
    },
    "transactions": {
      "description": "Account activity",
      "columns": {
        "id": {"type": "integer", "primary_key": true},
        "account_id": {"type": "integer", "required": true},
        "employee_id": {"type": "integer"},
        "type": {"type": "text", "distinct_values": ["deposit", "withdrawal", "transfer"]},
        "amount": {"type": "real", "required": true},
        "status": {"type": "text", "distinct_values": ["completed", "pending", "failed"]},
        "date": {"type": "text"}
      },
      "foreign_keys": [
        {"column": "account_id", "references": "accounts.id"},
        {"column": "employee_id", "references": "employees.id"}
      ]
    }
  }
}`

// NewStore parses the fixture metadata.
func NewStore(t *testing.T) *metadata.Store {
	t.Helper()
	store, err := metadata.Parse([]byte(MetadataJSON))
	require.NoError(t, err)
	return store
}

// NewGraph builds the FK graph over the fixture metadata.
func NewGraph(t *testing.T, store *metadata.Store) *metadata.FKGraph {
	t.Helper()
	graph, err := metadata.BuildGraph(store)
	require.NoError(t, err)
	return graph
}

const seedDDL = `
CREATE TABLE branches (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    city TEXT NOT NULL,
    state TEXT,
    manager_id INTEGER REFERENCES employees(id)
);
CREATE TABLE employees (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    position TEXT,
    salary REAL NOT NULL,
    branch_id INTEGER REFERENCES branches(id),
    hire_date TEXT
);
CREATE TABLE customers (
    id INTEGER PRIMARY KEY,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    email TEXT,
    phone TEXT,
    branch_id INTEGER REFERENCES branches(id)
);
CREATE TABLE accounts (
    id INTEGER PRIMARY KEY,
    customer_id INTEGER NOT NULL REFERENCES customers(id),
    branch_id INTEGER REFERENCES branches(id),
    type TEXT,
    balance REAL NOT NULL,
    status TEXT,
    opened_date TEXT
);
CREATE TABLE transactions (
    id INTEGER PRIMARY KEY,
    account_id INTEGER NOT NULL REFERENCES accounts(id),
    employee_id INTEGER REFERENCES employees(id),
    type TEXT,
    amount REAL NOT NULL,
    status TEXT,
    date TEXT
);

INSERT INTO branches VALUES
    (1, 'Downtown', 'San Francisco', 'CA', 1),
    (2, 'Midtown', 'New York', 'NY', 2),
    (3, 'Riverside', 'Austin', 'TX', NULL);
INSERT INTO employees VALUES
    (1, 'Alice Wong', 'Branch Manager', 95000, 1, '2019-03-11'),
    (2, 'Bruno Diaz', 'Branch Manager', 98000, 2, '2018-07-01'),
    (3, 'Carol Smith', 'Teller', 42000, 1, '2021-02-15'),
    (4, 'Dan Brown', 'Loan Officer', 61000, 3, '2020-10-30');
INSERT INTO customers VALUES
    (1, 'Eva', 'Martin', 'eva@example.com', '555-0100', 1),
    (2, 'Frank', 'Hill', 'frank@example.com', '555-0101', 2),
    (3, 'Grace', 'Lee', 'grace@example.com', '555-0102', 1);
INSERT INTO accounts VALUES
    (1, 1, 1, 'checking', 5200.50, 'active', '2022-01-10'),
    (2, 1, 1, 'savings', 31000.00, 'active', '2022-01-10'),
    (3, 2, 2, 'checking', 150.75, 'active', '2023-05-20'),
    (4, 3, 1, 'savings', 87000.00, 'frozen', '2021-09-02');
INSERT INTO transactions VALUES
    (1, 1, 3, 'deposit', 1200.00, 'completed', '2025-01-05'),
    (2, 1, 3, 'withdrawal', 300.00, 'completed', '2025-01-07'),
    (3, 2, NULL, 'deposit', 5000.00, 'completed', '2025-02-14'),
    (4, 3, 4, 'transfer', 75.00, 'pending', '2025-03-01');
`

// SeedSQLite creates a seeded database file under the test's temp dir
// and returns its path. The file outlives individual connections, so
// per-call fresh connections in the executor see the same data.
func SeedSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "banking.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(seedDDL)
	require.NoError(t, err)
	return path
}
