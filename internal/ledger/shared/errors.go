package shared

import "errors"

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("ledger: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("ledger: journal requires at least two lines")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("ledger: journal entry not found")
	// ErrAccountNotFound indicates a missing chart-of-accounts code.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrAccountNotPostable indicates an inactive or non-analytic account.
	ErrAccountNotPostable = errors.New("ledger: account is not postable")
	// ErrSourceAlreadyLinked indicates the source document already posted.
	ErrSourceAlreadyLinked = errors.New("ledger: source already linked")
	// ErrSourceConflict indicates the source link already exists.
	ErrSourceConflict = errors.New("ledger: source link conflict")
)
