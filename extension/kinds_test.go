package extension

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/x"
)

type expenseClaim struct {
	Amount float64
	Tags   []string
}

type expenseHandler struct{}

func (h *expenseHandler) Kind() string { return "expense" }

func (h *expenseHandler) InitTypes(types *Types) {
	types.Register(x.NewType(reflect.TypeOf(expenseClaim{}), x.WithName("ExpenseClaim")))
}

func TestKinds_Register(t *testing.T) {
	kinds := NewKinds()
	kinds.Register(&expenseHandler{})

	assert.NotNil(t, kinds.Lookup("expense"))
	assert.Nil(t, kinds.Lookup("overtime"))
	assert.Equal(t, []string{"expense"}, kinds.Registered())

	payloadType := kinds.Types().Lookup("ExpenseClaim")
	if assert.NotNil(t, payloadType) {
		assert.Equal(t, reflect.TypeOf(expenseClaim{}), payloadType.Type)
	}
}
