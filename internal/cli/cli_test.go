package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily-quiz-service/internal/domain"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"start", "migrate", "record"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	rollback, _, err := root.Find([]string{"migrate", "rollback"})
	require.NoError(t, err)
	assert.Equal(t, "rollback", rollback.Name())
}

func TestRecordFlagsToRecord(t *testing.T) {
	rec, err := recordFlags{
		userID:   "u1",
		kind:     "Income",
		amount:   "1200.50",
		category: " Salary ",
		method:   "Bank Transfer",
		at:       "2024-05-01T09:30:00+08:00",
	}.toRecord()
	require.NoError(t, err)

	assert.Equal(t, domain.KindIncome, rec.Kind)
	assert.Equal(t, "1200.5", rec.Amount.String())
	assert.Equal(t, "salary", rec.Category)
	assert.Equal(t, "bank transfer", rec.PaymentMethod)
	assert.True(t, rec.OccurredAt.Equal(time.Date(2024, 5, 1, 1, 30, 0, 0, time.UTC)))
}

func TestRecordFlagsRejectGarbage(t *testing.T) {
	_, err := recordFlags{userID: "u1", amount: "lots"}.toRecord()
	assert.Error(t, err)

	_, err = recordFlags{userID: "u1", amount: "10", at: "yesterday"}.toRecord()
	assert.Error(t, err)
}

func TestRecordRequiresPostgres(t *testing.T) {
	t.Setenv("POSTGRES_URL", "")
	err := runRecord(context.Background(), t.TempDir()+"/absent.yaml", recordFlags{userID: "u1", amount: "10"})
	assert.ErrorContains(t, err, "postgres url not configured")
}
