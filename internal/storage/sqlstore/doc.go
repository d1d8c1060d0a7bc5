// Package sqlstore implements the store contract on top of database/sql. The
// same queries run against MySQL in production and SQLite for local runs;
// dialect differences are limited to upserts, insert-ignore and schema files.
package sqlstore
