package migration

import (
	"fmt"

	taxdomain "github.com/smallbiznis/taxtracker/internal/taxrecord/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Steps returns the tax record schema history in version order.
func Steps() []Step {
	return []Step{
		{
			Version: 1,
			Name:    "create_tax_records",
			Pending: func(m gorm.Migrator) bool { return !m.HasTable(taxdomain.TableName) },
			Apply:   createTaxRecords,
		},
		{
			Version: 2,
			Name:    "add_tax_rate",
			Pending: missingColumn("tax_rate"),
			Apply:   addRealColumn("tax_rate"),
		},
		{
			Version: 3,
			Name:    "add_tax_due",
			Pending: missingColumn("tax_due"),
			Apply:   addRealColumn("tax_due"),
		},
	}
}

const createTaxRecordsSQLite = `CREATE TABLE IF NOT EXISTS TaxRecords (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	company TEXT NOT NULL,
	amount REAL NOT NULL,
	tax_rate REAL,
	tax_due REAL,
	payment_date TEXT,
	status TEXT CHECK(status IN ('paid', 'unpaid')) NOT NULL,
	due_date TEXT NOT NULL
)`

const createTaxRecordsPostgres = `CREATE TABLE IF NOT EXISTS "TaxRecords" (
	id BIGSERIAL PRIMARY KEY,
	company TEXT NOT NULL,
	amount DOUBLE PRECISION NOT NULL,
	tax_rate DOUBLE PRECISION,
	tax_due DOUBLE PRECISION,
	payment_date TEXT,
	status TEXT NOT NULL CONSTRAINT chk_tax_records_status CHECK (status IN ('paid', 'unpaid')),
	due_date TEXT NOT NULL
)`

const createTaxRecordsMySQL = "CREATE TABLE IF NOT EXISTS `TaxRecords` (" + `
	id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	company TEXT NOT NULL,
	amount DOUBLE NOT NULL,
	tax_rate DOUBLE,
	tax_due DOUBLE,
	payment_date VARCHAR(64),
	status VARCHAR(16) NOT NULL,
	due_date VARCHAR(64) NOT NULL,
	CONSTRAINT chk_tax_records_status CHECK (status IN ('paid', 'unpaid'))
)`

func createTaxRecords(tx *gorm.DB) error {
	var ddl string
	switch tx.Dialector.Name() {
	case "sqlite":
		ddl = createTaxRecordsSQLite
	case "postgres":
		ddl = createTaxRecordsPostgres
	case "mysql":
		ddl = createTaxRecordsMySQL
	default:
		return fmt.Errorf("no TaxRecords DDL for dialect %q", tx.Dialector.Name())
	}
	return tx.Exec(ddl).Error
}

func missingColumn(column string) func(m gorm.Migrator) bool {
	return func(m gorm.Migrator) bool {
		return !m.HasColumn(&taxdomain.TaxRecord{}, column)
	}
}

// addRealColumn adds a nullable floating point column; existing rows get NULL.
func addRealColumn(column string) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		return tx.Exec(
			"ALTER TABLE ? ADD COLUMN ? "+realType(tx.Dialector.Name()),
			clause.Table{Name: taxdomain.TableName},
			clause.Column{Name: column},
		).Error
	}
}

func realType(dialect string) string {
	switch dialect {
	case "postgres":
		return "DOUBLE PRECISION"
	case "mysql":
		return "DOUBLE"
	default:
		return "REAL"
	}
}
