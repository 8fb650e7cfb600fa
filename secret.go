package auth

import (
	"database/sql/driver"
	"fmt"
)

// Secret wraps a sensitive string so it cannot leak through logging or JSON
// serialization by accident. Access to the raw value goes through Expose.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string {
	return redacted
}

func (s Secret) GoString() string {
	return redacted
}

func (s Secret) Format(f fmt.State, verb rune) {
	fmt.Fprint(f, redacted)
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Expose returns the wrapped value
func (s Secret) Expose() string {
	return string(s)
}

// Value implements driver.Valuer so the raw value reaches the database
func (s Secret) Value() (driver.Value, error) {
	return string(s), nil
}

// Scan implements sql.Scanner
func (s *Secret) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = ""
	case string:
		*s = Secret(v)
	case []byte:
		*s = Secret(v)
	default:
		return fmt.Errorf("unsupported scan type for secret: %T", src)
	}
	return nil
}
