package repo

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrConflict — нарушение целостности (уникальность, внешний ключ).
	// Обработчик сообщения НЕ ретраит такую ошибку локально:
	// сообщение возвращается брокеру, redelivery — единственный ретрай.
	ErrConflict = errors.New("integrity conflict")
)

// asConflict переводит нарушения уникальности и внешних ключей
// Postgres в ErrConflict, остальные ошибки возвращает как есть.
func asConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503":
			return errors.Join(ErrConflict, err)
		}
	}
	return err
}
