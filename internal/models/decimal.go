package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Decimal 统一定点数类型（保留 3 位小数，用于重量等计量值）
type Decimal struct {
	decimal.Decimal
}

// NewDecimal 从 decimal 创建
func NewDecimal(d decimal.Decimal) Decimal {
	return Decimal{Decimal: d.Round(3)}
}

// MarshalJSON 统一输出 3 位小数的字符串
func (d Decimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Decimal.Round(3).StringFixed(3))
}

// UnmarshalJSON 解析定点数（字符串或数字）
func (d *Decimal) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		d.Decimal = parsed.Round(3)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	d.Decimal = decimal.NewFromFloat(f).Round(3)
	return nil
}

// Value 用于数据库写入
func (d Decimal) Value() (driver.Value, error) {
	return d.Decimal.Round(3).Value()
}

// Scan 用于数据库读取
func (d *Decimal) Scan(value interface{}) error {
	if err := d.Decimal.Scan(value); err != nil {
		return err
	}
	d.Decimal = d.Decimal.Round(3)
	return nil
}

// String 返回 3 位小数格式
func (d Decimal) String() string {
	return d.Decimal.Round(3).StringFixed(3)
}
