package repository

import (
	"database/sql"
	"fmt"

	"gorm.io/gorm"
)

// TxCursor is a forward-only cursor over indexed transactions. Next returns
// false with a nil error once the cursor is exhausted.
type TxCursor interface {
	Next() (Transaction, bool, error)
	Close() error
}

type rowsCursor struct {
	rows *sql.Rows
	db   *gorm.DB
}

func (c *rowsCursor) Next() (Transaction, bool, error) {
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return Transaction{}, false, fmt.Errorf("cursor advance: %w", err)
		}
		return Transaction{}, false, nil
	}

	var tx Transaction
	if err := c.db.ScanRows(c.rows, &tx); err != nil {
		return Transaction{}, false, fmt.Errorf("scan transaction row: %w", err)
	}

	return tx, true, nil
}

func (c *rowsCursor) Close() error {
	return c.rows.Close()
}
