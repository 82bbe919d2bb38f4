package database

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	pgUndefinedFunction  = "42883"
	pgUniqueViolation    = "23505"
	mysqlNoSuchFunction  = 1305
	mysqlDuplicateEntry  = 1062
	sqliteNoSuchFunction = "no such function"
)

// IsUndefinedFunction reports whether err says a stored procedure does not exist.
func IsUndefinedFunction(err error) bool {
	if err == nil {
		return false
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == pgUndefinedFunction
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlNoSuchFunction
	}
	return strings.Contains(err.Error(), sqliteNoSuchFunction)
}

// IsUniqueViolation reports whether err is a duplicate key error.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == pgUniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
