package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// transactions must be created before allocations and credits due to the foreign keys.
const schema = `
CREATE TABLE IF NOT EXISTS students (
    admission_no TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    class TEXT NOT NULL DEFAULT '',
    paid_total INTEGER NOT NULL DEFAULT 0,
    credit INTEGER NOT NULL DEFAULT 0,
    balance INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
    payment_id TEXT PRIMARY KEY,
    amount INTEGER NOT NULL,
    term TEXT NOT NULL,
    reference TEXT NOT NULL,
    remaining_credit INTEGER NOT NULL,
    unassigned_credit INTEGER NOT NULL DEFAULT 0,
    msisdn TEXT,
    payer_name TEXT,
    received_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS allocations (
    id TEXT PRIMARY KEY,
    payment_id TEXT NOT NULL,
    admission_no TEXT NOT NULL,
    amount INTEGER NOT NULL,
    position INTEGER NOT NULL,
    FOREIGN KEY (payment_id) REFERENCES transactions(payment_id) ON DELETE CASCADE,
    FOREIGN KEY (admission_no) REFERENCES students(admission_no)
);

CREATE TABLE IF NOT EXISTS credits (
    id TEXT PRIMARY KEY,
    payment_id TEXT NOT NULL,
    admission_no TEXT NOT NULL,
    amount INTEGER NOT NULL,
    position INTEGER NOT NULL,
    FOREIGN KEY (payment_id) REFERENCES transactions(payment_id) ON DELETE CASCADE,
    FOREIGN KEY (admission_no) REFERENCES students(admission_no)
);

CREATE INDEX IF NOT EXISTS idx_transactions_received_at ON transactions(received_at);
CREATE INDEX IF NOT EXISTS idx_allocations_payment_id ON allocations(payment_id);
CREATE INDEX IF NOT EXISTS idx_credits_payment_id ON credits(payment_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
