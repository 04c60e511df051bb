package database

import (
	"time"
)

// SessionRow is the single stored credential set.
type SessionRow struct {
	ID            int64     `db:"id"`
	AccountID     int64     `db:"account_id"`
	AccountSecret string    `db:"account_secret"`
	Token         string    `db:"token"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// ModuleLoad is the outcome of registering one module during a run.
type ModuleLoad struct {
	ID        uint      `db:"id"`
	RunID     string    `db:"run_id"`
	Module    string    `db:"module"`
	Trigger   string    `db:"trigger_expr"`
	Direction string    `db:"direction"`
	Loaded    bool      `db:"loaded"`
	Error     string    `db:"error"`
	CreatedAt time.Time `db:"created_at"`
}
