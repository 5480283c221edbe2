package model

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// Account holds one user's coin balance.
//
// The balance is the only shared mutable money state in the system. It is
// mutated exclusively through the unit of work's ApplyDelta; nothing else
// may read-then-write it.
type Account struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CPF          string          `gorm:"type:varchar(11);uniqueIndex;not null" json:"cpf"` // normalized national ID, immutable
	Name         string          `gorm:"type:varchar(128);not null" json:"name"`
	Email        string          `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	PasswordHash string          `gorm:"type:varchar(128);not null" json:"-"`
	Balance      decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"balance"`
	PixKey       string          `gorm:"type:varchar(140)" json:"pix_key"` // withdrawal destination, optional
	Version      int             `gorm:"not null;default:0" json:"-"`      // bumped on every balance write
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

var cpfNonDigits = regexp.MustCompile(`\D`)

// NormalizeCPF strips formatting characters from a national ID, so that
// "123.456.789-09" and "12345678909" address the same account.
func NormalizeCPF(cpf string) string {
	return cpfNonDigits.ReplaceAllString(cpf, "")
}
