package queue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"posd/internal/domain"
)

func tableOf(n int) *int { return &n }

func testCreate(t *testing.T, localID string) Entry {
	t.Helper()
	e, err := NewCreateOrder(CreateOrderPayload{
		LocalID:     localID,
		Type:        domain.OrderDineIn,
		Source:      domain.SourcePOS,
		TableNumber: tableOf(4),
		Items:       []domain.OrderItem{{Name: "pasta", Price: 1200, Quantity: 2}},
	})
	require.NoError(t, err)
	return e
}

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.yaml")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestEnqueuePersistsImmediately(t *testing.T) {
	s, path := openStore(t)
	require.NoError(t, s.Enqueue(testCreate(t, "loc_a")))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "loc_a")
}

func TestRoundTrip(t *testing.T) {
	s, path := openStore(t)
	e1 := testCreate(t, "loc_a")
	e2, err := NewUpdateStatus("loc_a", domain.StatusConfirmed)
	require.NoError(t, err)
	e3 := testCreate(t, "loc_b")
	require.NoError(t, s.Enqueue(e1))
	require.NoError(t, s.Enqueue(e2))
	require.NoError(t, s.Enqueue(e3))
	require.NoError(t, s.Fail(e1.ID, "dial tcp: connection refused"))
	require.NoError(t, s.Fail(e1.ID, "timeout"))

	reloaded, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, s.List(), reloaded.List(), "reload must preserve entries, order and attempts")

	got := reloaded.List()
	require.Equal(t, 2, got[0].Attempts)
	require.NotNil(t, got[0].LastError)
	require.Equal(t, "timeout", *got[0].LastError)
}

func TestPeekAndDequeue(t *testing.T) {
	s, _ := openStore(t)
	_, ok := s.Peek()
	require.False(t, ok)

	e1 := testCreate(t, "loc_a")
	e2 := testCreate(t, "loc_b")
	require.NoError(t, s.Enqueue(e1))
	require.NoError(t, s.Enqueue(e2))

	head, ok := s.Peek()
	require.True(t, ok)
	require.Equal(t, e1.ID, head.ID)

	require.NoError(t, s.Dequeue(e1.ID))
	head, ok = s.Peek()
	require.True(t, ok)
	require.Equal(t, e2.ID, head.ID)

	// dequeue of a removed entry is a no-op
	require.NoError(t, s.Dequeue(e1.ID))
	require.Equal(t, 1, s.Len())
}

func TestHasLater(t *testing.T) {
	s, _ := openStore(t)
	e1 := testCreate(t, "loc_a")
	e2, err := NewUpdateStatus("loc_a", domain.StatusConfirmed)
	require.NoError(t, err)
	require.NoError(t, s.Enqueue(e1))
	require.NoError(t, s.Enqueue(e2))

	require.True(t, s.HasLater("loc_a", e1.ID))
	require.False(t, s.HasLater("loc_a", e2.ID))
	require.False(t, s.HasLater("loc_b", e1.ID))

	// after e1 is confirmed and removed, e2 still counts as later
	require.NoError(t, s.Dequeue(e1.ID))
	require.True(t, s.HasLater("loc_a", e1.ID))
}

func TestResolveResource(t *testing.T) {
	s, path := openStore(t)
	e1 := testCreate(t, "loc_a")
	e2, err := NewUpdateStatus("loc_a", domain.StatusConfirmed)
	require.NoError(t, err)
	require.NoError(t, s.Enqueue(e1))
	require.NoError(t, s.Enqueue(e2))

	require.NoError(t, s.ResolveResource("loc_a", "ord_42"))
	require.Equal(t, "ord_42", s.List()[1].UpdateStatus.OrderID)
	require.Equal(t, "loc_a", s.List()[1].Resource, "chain key keeps the local ID")

	// entries enqueued after resolution pick up the server ID, even
	// across a reload
	reloaded, err := Open(path)
	require.NoError(t, err)
	e3, err := NewRecordPayment("loc_a", domain.PayCash)
	require.NoError(t, err)
	require.NoError(t, reloaded.Enqueue(e3))
	got := reloaded.List()
	require.Equal(t, "ord_42", got[len(got)-1].RecordPayment.OrderID)
}

func TestOpenRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.yaml")
	require.NoError(t, os.WriteFile(path, []byte("file_type: something_else\n"), 0o644))
	_, err := Open(path)
	require.Error(t, err)
}

func TestAtomicWriteKeepsBackup(t *testing.T) {
	s, path := openStore(t)
	require.NoError(t, s.Enqueue(testCreate(t, "loc_a")))
	require.NoError(t, s.Enqueue(testCreate(t, "loc_b")))

	b, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	require.Contains(t, string(b), "loc_a")
	require.NotContains(t, string(b), "loc_b")
}
