package sqlstore

import (
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

type dialect struct {
	name          string
	driverName    string
	insertIgnore  string
	upsertProfile string
}

const profileColumns = `user_id, name, skills, hourly_rate, checking_balance, split_tax_pct, split_savings_pct, split_buffer_pct, billable_days_per_year, billable_hours_per_day`

var (
	dialectMySQL = dialect{
		name:         "mysql",
		driverName:   "mysql",
		insertIgnore: "INSERT IGNORE INTO",
		upsertProfile: `INSERT INTO profiles (` + profileColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE name = VALUES(name), skills = VALUES(skills), hourly_rate = VALUES(hourly_rate),
checking_balance = VALUES(checking_balance), split_tax_pct = VALUES(split_tax_pct), split_savings_pct = VALUES(split_savings_pct),
split_buffer_pct = VALUES(split_buffer_pct), billable_days_per_year = VALUES(billable_days_per_year),
billable_hours_per_day = VALUES(billable_hours_per_day)`,
	}
	dialectSQLite = dialect{
		name:         "sqlite",
		driverName:   "sqlite3",
		insertIgnore: "INSERT OR IGNORE INTO",
		upsertProfile: `INSERT INTO profiles (` + profileColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET name = excluded.name, skills = excluded.skills, hourly_rate = excluded.hourly_rate,
checking_balance = excluded.checking_balance, split_tax_pct = excluded.split_tax_pct, split_savings_pct = excluded.split_savings_pct,
split_buffer_pct = excluded.split_buffer_pct, billable_days_per_year = excluded.billable_days_per_year,
billable_hours_per_day = excluded.billable_hours_per_day`,
	}
)

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "mysql":
		return dialectMySQL, nil
	case "sqlite", "sqlite3":
		return dialectSQLite, nil
	default:
		return dialect{}, fmt.Errorf("不支持的数据库驱动: %s", driver)
	}
}

// isDuplicate 判断错误是否为主键或唯一索引冲突。
func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	if stdErrors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr sqlite3.Error
	if stdErrors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
