package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kalita-labs/truss/internal/errs"
)

// TestRollbackLeavesStateUnchanged covers spec §8 scenario S2: a procedure that updates a row
// and then references an undefined variable must leave the row unchanged,
// since the whole body runs inside one transaction that only commits on a
// clean run.
func TestRollbackLeavesStateUnchanged(t *testing.T) {
	e, _, _ := newTestEngine(t, `
Account {
    number:id [primary],
    number[10.2]:balance
}
`)
	require.NoError(t, e.Compile(`
SeedAccount(number:id, number:balance):
    Create an Account with id of {id} and balance of {balance} as account
    return {account}

RiskyTransfer(number:id, number:amount):
    Get the Account by id of {id} as account
    Update the account to set balance = {amount}
    return {undefinedVar}

GetAccount(number:id):
    Get the Account by id of {id} as account
    return {account}
`))

	ctx := context.Background()
	_, err := e.Call(ctx, "SeedAccount", map[string]any{"id": "1", "balance": "500.00"})
	require.NoError(t, err)

	_, err = e.Call(ctx, "RiskyTransfer", map[string]any{"id": "1", "amount": "2000.00"})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.Resolution))

	after, err := e.Call(ctx, "GetAccount", map[string]any{"id": "1"})
	require.NoError(t, err)
	require.Equal(t, "500.00", after.(map[string]any)["balance"])
}
