package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the statements executed by Migrate, in order.  Every
// statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS shows (
		id              BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		title           VARCHAR(255)    NOT NULL,
		total_seats     INT             NOT NULL,
		available_seats INT             NOT NULL,
		locked_seats    INT             NOT NULL DEFAULT 0,
		booked_seats    INT             NOT NULL DEFAULT 0,
		created_at      DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at      DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		PRIMARY KEY (id),
		CONSTRAINT chk_shows_non_negative CHECK (available_seats >= 0 AND locked_seats >= 0 AND booked_seats >= 0),
		CONSTRAINT chk_shows_conserved CHECK (available_seats + locked_seats + booked_seats = total_seats)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS seats (
		id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		show_id     BIGINT UNSIGNED NOT NULL,
		seat_number VARCHAR(16)     NOT NULL,
		status      ENUM('available','locked','booked') NOT NULL DEFAULT 'available',
		locked_by   VARCHAR(64)     NULL,
		locked_at   DATETIME(6)     NULL,
		lock_expiry DATETIME(6)     NULL,
		booked_by   VARCHAR(64)     NULL,
		booked_at   DATETIME(6)     NULL,
		booking_id  CHAR(36)        NULL,
		booking_ref VARCHAR(32)     NULL,
		price_cents INT UNSIGNED    NOT NULL,
		created_at  DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at  DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		PRIMARY KEY (id),
		UNIQUE KEY uq_seats_show_number (show_id, seat_number),
		KEY idx_seats_show_status (show_id, status),
		KEY idx_seats_booking (booking_id),
		CONSTRAINT fk_seats_show FOREIGN KEY (show_id) REFERENCES shows (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id                CHAR(36)        NOT NULL,
		reference         VARCHAR(32)     NOT NULL,
		show_id           BIGINT UNSIGNED NOT NULL,
		holder_id         VARCHAR(64)     NOT NULL,
		seat_numbers      JSON            NOT NULL,
		total_price_cents BIGINT UNSIGNED NOT NULL,
		status            ENUM('pending','confirmed','cancelled') NOT NULL DEFAULT 'pending',
		payment_status    ENUM('pending','completed','failed')    NOT NULL DEFAULT 'pending',
		transaction_id    VARCHAR(128)    NULL,
		email             VARCHAR(255)    NOT NULL,
		phone             VARCHAR(32)     NOT NULL,
		created_at        DATETIME(6)     NOT NULL,
		confirmed_at      DATETIME(6)     NULL,
		updated_at        DATETIME(6)     NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_bookings_reference (reference),
		KEY idx_bookings_holder (holder_id, created_at),
		CONSTRAINT fk_bookings_show FOREIGN KEY (show_id) REFERENCES shows (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the shows, seats and bookings tables when they do not
// exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}

// SeatSeed is one seat created by SeedShow.
type SeatSeed struct {
	Number     string
	PriceCents uint32
}

// SeedShow inserts a show with all of its seats available and returns the
// new show ID.  It runs in a single transaction.
func SeedShow(ctx context.Context, db *sql.DB, title string, seats []SeatSeed) (uint64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO shows (title, total_seats, available_seats) VALUES (?, ?, ?)`,
		title, len(seats), len(seats))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, s := range seats {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO seats (show_id, seat_number, status, price_cents) VALUES (?, ?, 'available', ?)`,
			id, s.Number, s.PriceCents); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return uint64(id), nil
}
