package store

import (
	"fmt"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// DoInTx runs fn inside a database transaction. The transaction is rolled
// back when fn returns an error or panics; the panic is re-raised.
func DoInTx(db *gorm.DB, fn func(tx *gorm.DB) error) (err error) {
	tx := db.Begin()
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "begin transaction")
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	return errors.Wrap(tx.Commit().Error, "commit transaction")
}
