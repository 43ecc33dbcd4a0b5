package repository

import (
	"errors"

	repo "pos/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// unique_violation
const pgUniqueViolation = "23505"

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// 一意制約違反は repo.ErrDuplicateKey に寄せる
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return repo.ErrDuplicateKey
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repo.ErrDuplicateKey
	}
	return err
}
