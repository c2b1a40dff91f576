package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifierToSQL(t *testing.T) {
	tests := []struct {
		name       string
		id         Identifier
		processing Processing
		expected   string
	}{
		{"quoted keeps case", Quoted("Order"), ANSI, `"Order"`},
		{"unquoted as given", Unquoted("Order"), ANSI, "Order"},
		{"derived quoted ansi", Derived("order", true), ANSI, `"ORDER"`},
		{"derived quoted postgres", Derived("Order", true), Postgres, `"order"`},
		{"derived unquoted postgres", Derived("Order", false), Postgres, "order"},
		{"derived mysql", Derived("line_item", true), MySQL, "`line_item`"},
		{"composite", From(Derived("sales", true), Quoted("orders")), Postgres, `"sales"."orders"`},
		{"empty", Identifier{}, ANSI, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.id.ToSQL(tt.processing))
		})
	}
}

func TestIdentifierAccessors(t *testing.T) {
	id := From(Unquoted("sales"), Derived("order", true))

	assert.False(t, id.IsEmpty())
	assert.True(t, id.IsComposite())
	assert.True(t, id.IsQuoted())
	assert.True(t, id.IsDerived())
	assert.Equal(t, "order", id.Reference())
	assert.Len(t, id.Parts(), 2)
	assert.Equal(t, `sales."order"`, id.String())

	var empty Identifier
	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.IsQuoted())
	assert.Equal(t, "", empty.Reference())
}

func TestIdentifierEqual(t *testing.T) {
	assert.True(t, Derived("order", true).Equal(Derived("order", true)))
	assert.False(t, Derived("order", true).Equal(Derived("order", false)))
	assert.False(t, Derived("order", true).Equal(Quoted("order")))
	assert.False(t, Quoted("order").Equal(From(Quoted("s"), Quoted("order"))))
	assert.True(t, From(Identifier{}, Quoted("a")).Equal(Quoted("a")))
}

func TestIdentifierTransform(t *testing.T) {
	id := Derived("street", true)
	prefixed := id.Transform(func(name string) string { return "home_" + name })

	assert.Equal(t, "home_street", prefixed.Reference())
	assert.True(t, prefixed.IsDerived())
	assert.Equal(t, "street", id.Reference())
}
