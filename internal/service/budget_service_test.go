package service

import (
	"sync"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/gatherly/internal/budget"
)

func TestAttributeEvent(t *testing.T) {
	ts := setupTestServer(t)
	e := createEvent(t, ts, "alice", "Dinner", dinnerStart, 30, "bob", "carol")

	res := mustCall[EventRequest, BudgetResponse](t, ts, "bob", BudgetServiceName, "AttributeEvent", &EventRequest{EventID: e.ID})
	require.NotNil(t, res.Budget)
	assert.Equal(t, "2030-06", res.Budget.Month)
	assert.Equal(t, 15.0, res.Budget.Spent)
	require.Len(t, res.Budget.Events, 1)
	assert.Equal(t, e.ID, res.Budget.Events[0].EventID)
	assert.Equal(t, "Dinner", res.Budget.Events[0].EventTitle)

	_, err := call[EventRequest, BudgetResponse](t, ts, "bob", BudgetServiceName, "AttributeEvent", &EventRequest{EventID: e.ID})
	requireCode(t, err, connect.CodeAlreadyExists)

	// The creator is not an invitee and carries no share.
	_, err = call[EventRequest, BudgetResponse](t, ts, "alice", BudgetServiceName, "AttributeEvent", &EventRequest{EventID: e.ID})
	requireCode(t, err, connect.CodeInvalidArgument)

	_, err = call[EventRequest, BudgetResponse](t, ts, "mallory", BudgetServiceName, "AttributeEvent", &EventRequest{EventID: e.ID})
	requireCode(t, err, connect.CodeNotFound)
}

func TestConcurrentAttributeEventCountsOnce(t *testing.T) {
	ts := setupTestServer(t)
	e := createEvent(t, ts, "alice", "Dinner", dinnerStart, 30, "bob", "carol")

	const callers = 4
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := call[EventRequest, BudgetResponse](t, ts, "bob", BudgetServiceName, "AttributeEvent", &EventRequest{EventID: e.ID})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		requireCode(t, err, connect.CodeAlreadyExists)
	}
	assert.Equal(t, 1, ok)

	res := mustCall[Empty, ListBudgetsResponse](t, ts, "bob", BudgetServiceName, "ListBudgets", &Empty{})
	require.Len(t, res.Budgets, 1)
	assert.Equal(t, 15.0, res.Budgets[0].Spent)
	assert.Len(t, res.Budgets[0].Events, 1)
}

func TestBudgetLimits(t *testing.T) {
	ts := setupTestServer(t)
	e := createEvent(t, ts, "alice", "Dinner", dinnerStart, 30, "bob")
	mustCall[EventRequest, BudgetResponse](t, ts, "bob", BudgetServiceName, "AttributeEvent", &EventRequest{EventID: e.ID})

	res := mustCall[SetBudgetLimitRequest, BudgetResponse](t, ts, "bob", BudgetServiceName, "SetBudgetLimit",
		&SetBudgetLimitRequest{Month: "2030-06", Limit: 25})
	assert.Equal(t, &budget.Snapshot{Month: "2030-06", Limit: 25, Spent: 30, Remaining: -5, OverLimit: true}, res.Snapshot)

	_, err := call[SetBudgetLimitRequest, BudgetResponse](t, ts, "bob", BudgetServiceName, "SetBudgetLimit",
		&SetBudgetLimitRequest{Month: "June", Limit: 25})
	requireCode(t, err, connect.CodeInvalidArgument)

	_, err = call[SetBudgetLimitRequest, BudgetResponse](t, ts, "bob", BudgetServiceName, "SetBudgetLimit",
		&SetBudgetLimitRequest{Month: "2030-07", Limit: -1})
	requireCode(t, err, connect.CodeInvalidArgument)

	mustCall[SetBudgetLimitRequest, BudgetResponse](t, ts, "bob", BudgetServiceName, "SetBudgetLimit",
		&SetBudgetLimitRequest{Month: "2030-07", Limit: 100})

	list := mustCall[Empty, ListBudgetsResponse](t, ts, "bob", BudgetServiceName, "ListBudgets", &Empty{})
	var months []string
	for _, b := range list.Budgets {
		months = append(months, b.Month)
	}
	assert.ElementsMatch(t, []string{"2030-06", "2030-07"}, months)

	carol := mustCall[Empty, ListBudgetsResponse](t, ts, "carol", BudgetServiceName, "ListBudgets", &Empty{})
	assert.Empty(t, carol.Budgets)
}

func TestGetCurrentBudgetWithoutRecord(t *testing.T) {
	ts := setupTestServer(t)

	res := mustCall[Empty, BudgetResponse](t, ts, "bob", BudgetServiceName, "GetCurrentBudget", &Empty{})
	assert.Nil(t, res.Budget)
	assert.Nil(t, res.Snapshot)
}
