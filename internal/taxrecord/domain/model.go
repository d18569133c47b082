package domain

// TableName is the storage table shared with existing tax_tracking.db files.
const TableName = "TaxRecords"

type Status string

const (
	StatusPaid   Status = "paid"
	StatusUnpaid Status = "unpaid"
)

// TaxRecord is a single tax-liability entry. Rows are immutable once stored;
// the only lifecycle operation after insert is deletion.
type TaxRecord struct {
	ID          int64    `gorm:"column:id;primaryKey;autoIncrement"`
	Company     string   `gorm:"column:company;not null"`
	Amount      float64  `gorm:"column:amount;not null"`
	TaxRate     *float64 `gorm:"column:tax_rate"` // fraction, e.g. 0.07
	TaxDue      *float64 `gorm:"column:tax_due"`  // amount * tax_rate at insert time
	PaymentDate *string  `gorm:"column:payment_date"`
	Status      Status   `gorm:"column:status;not null"`
	DueDate     string   `gorm:"column:due_date;not null"`
}

func (TaxRecord) TableName() string { return TableName }
