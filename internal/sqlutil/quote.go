// Package sqlutil provides SQL identifier handling: quoting, letter casing and
// rendering of plain, derived and schema-qualified identifiers per dialect.
package sqlutil

import (
	"fmt"
	"strings"
)

// Quoting describes how a dialect quotes identifiers.
type Quoting struct {
	Prefix string
	Suffix string
}

var (
	// QuotingANSI quotes with double quotes.
	QuotingANSI = Quoting{Prefix: `"`, Suffix: `"`}
	// QuotingBacktick quotes with backticks (MySQL, TiDB).
	QuotingBacktick = Quoting{Prefix: "`", Suffix: "`"}
	// QuotingNone leaves identifiers as they are.
	QuotingNone = Quoting{}
)

// Apply quotes name and escapes any embedded suffix characters by doubling them.
func (q Quoting) Apply(name string) string {
	if q.Suffix != "" {
		name = strings.ReplaceAll(name, q.Suffix, q.Suffix+q.Suffix)
	}
	return q.Prefix + name + q.Suffix
}

// LetterCasing controls how derived identifiers are case-normalized.
type LetterCasing int

const (
	// AsIs keeps names unchanged.
	AsIs LetterCasing = iota
	// UpperCase converts names to upper case.
	UpperCase
	// LowerCase converts names to lower case.
	LowerCase
)

// Apply normalizes name according to the casing rule.
func (c LetterCasing) Apply(name string) string {
	switch c {
	case UpperCase:
		return strings.ToUpper(name)
	case LowerCase:
		return strings.ToLower(name)
	default:
		return name
	}
}

// Processing bundles the quoting and casing rules of a dialect.
type Processing struct {
	Quoting      Quoting
	LetterCasing LetterCasing
}

// Dialect names a supported identifier processing preset.
type Dialect string

const (
	DialectANSI     Dialect = "ansi"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

var (
	// ANSI follows the SQL standard: double quotes, unquoted names fold to upper case.
	ANSI = Processing{Quoting: QuotingANSI, LetterCasing: UpperCase}
	// Postgres folds unquoted names to lower case.
	Postgres = Processing{Quoting: QuotingANSI, LetterCasing: LowerCase}
	// MySQL quotes with backticks and keeps case.
	MySQL = Processing{Quoting: QuotingBacktick, LetterCasing: AsIs}
)

// Dialects lists the names accepted by ProcessingFor.
func Dialects() []Dialect {
	return []Dialect{DialectANSI, DialectPostgres, DialectMySQL}
}

// ProcessingFor returns the preset for a dialect name. The empty name maps to ANSI.
func ProcessingFor(dialect Dialect) (Processing, error) {
	switch Dialect(strings.ToLower(string(dialect))) {
	case "", DialectANSI:
		return ANSI, nil
	case DialectPostgres:
		return Postgres, nil
	case DialectMySQL:
		return MySQL, nil
	default:
		return Processing{}, fmt.Errorf("unknown dialect %q", dialect)
	}
}
