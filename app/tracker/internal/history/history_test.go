// app/tracker/internal/history/history_test.go
package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidStatus(t *testing.T) {
	for _, status := range []string{
		StatusPending, StatusPickedUp, StatusInTransit, StatusDelivered, StatusFailed,
	} {
		assert.True(t, ValidStatus(status), status)
	}

	assert.False(t, ValidStatus("pending"))
	assert.False(t, ValidStatus("LOST"))
	assert.False(t, ValidStatus(""))
}
