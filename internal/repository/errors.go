// Package repository defines the MySQL-backed seat, show counter and
// booking stores together with the error values shared by every store
// backend. These sentinel values allow higher layers such as services to
// distinguish between different failure scenarios without inspecting
// driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a seat, show or booking lookup yields no
// rows.
var ErrNotFound = errors.New("not found")

// ErrDuplicateReference is returned when a booking insert violates the
// unique booking reference constraint. Callers retry with a fresh
// reference.
var ErrDuplicateReference = errors.New("duplicate booking reference")

// ErrConcurrentModification is returned when a conditional multi-row
// update touched fewer rows than expected because another caller changed
// them first.
var ErrConcurrentModification = errors.New("concurrent modification")

// ErrCounterUnderflow is returned when a counter adjustment would drive a
// show counter below zero.
var ErrCounterUnderflow = errors.New("show counter underflow")

// ErrStatusConflict is returned when a conditional booking status update
// finds the booking in a different state than expected.
var ErrStatusConflict = errors.New("booking status conflict")

// mysqlErrDupEntry is ER_DUP_ENTRY.
const mysqlErrDupEntry = 1062

func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDupEntry
}
