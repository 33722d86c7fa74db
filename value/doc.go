// Package value defines the canonical value representation shared by the
// decoder, the binder and the execution engine.
//
// A Value is a small tagged union. The tag is one of the Type constants and
// selects which payload is meaningful:
//
//	TypeNull       no payload
//	TypeBoolean    bool
//	TypeInteger    int64 (16-bit on disk)
//	TypeLong       int64 (32-bit on disk)
//	TypeDouble     float64
//	TypeDecimal    decimal.Decimal (currency and BCD columns)
//	TypeDate       time.Time at UTC midnight
//	TypeTime       time.Duration since midnight
//	TypeTimestamp  time.Time in UTC
//	TypeString     string
//	TypeBinary     []byte
//	TypeLOB        LOB descriptor, resolved on demand
//
// Ordering follows a single policy used everywhere: NULL is smaller than
// every non-null value and equal to another NULL. Values in the same family
// compare naturally (all numeric tags compare numerically, dates and
// timestamps compare as instants). A string compared with a numeric or
// temporal value is parsed into that type; any other mix of families is a
// type error.
package value
