package oplog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNotifier struct {
	messages []string
}

func (n *stubNotifier) NotifyAdmin(message string) {
	n.messages = append(n.messages, message)
}

func TestPrintfWritesMonthlyFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir)
	require.NoError(t, err)

	logger.Printf("scheduler: starting check for %d users", 3)

	now := time.Now()
	name := fmt.Sprintf("log_%s%d.txt", strings.ToUpper(now.Month().String()), now.Year())
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Contains(t, string(data), "scheduler: starting check for 3 users")
	// every line carries a timestamp prefix
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} `, string(data))
}

func TestErrorWritesDailyFileWithCauseChain(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir)
	require.NoError(t, err)

	wrapped := fmt.Errorf("check item: %w", fmt.Errorf("get page: %w", os.ErrDeadlineExceeded))
	logger.Error(wrapped, "user 42", "white shoes")

	now := time.Now()
	name := fmt.Sprintf("errors_%d%d%d.txt", now.Day(), int(now.Month()), now.Year())
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)

	assert.Contains(t, string(data), "user 42 white shoes: check item: get page:")
	assert.Contains(t, string(data), "caused by: get page:")
	assert.Contains(t, string(data), "caused by: "+os.ErrDeadlineExceeded.Error())
}

func TestErrorPingsAdmin(t *testing.T) {
	logger, err := New(t.TempDir())
	require.NoError(t, err)

	// without a notifier errors only go to disk
	logger.Error(fmt.Errorf("boom"))

	notifier := &stubNotifier{}
	logger.SetAdminNotifier(notifier)
	logger.Error(fmt.Errorf("boom again"))

	require.Len(t, notifier.messages, 1)
	assert.Equal(t, "some errors occurred :(", notifier.messages[0])
}
