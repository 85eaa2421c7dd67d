package btree

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// intKey is a minimal Key[intKey] implementation used only by this test
// suite; production code keys on types.DocumentID.
type intKey int

func (a intKey) Less(b intKey) bool { return a < b }

func TestInsertSearchUniqueKeys(t *testing.T) {
	tr := New[intKey, string]()
	n := 200
	perm := rand.New(rand.NewSource(1)).Perm(n)
	for _, k := range perm {
		tr = tr.Insert(intKey(k), fmt.Sprintf("/test%d.md", k))
	}
	assert.Equal(t, n, tr.TotalKeys())
	require.NoError(t, tr.CheckInvariants())

	for k := 0; k < n; k++ {
		v, ok := tr.Search(intKey(k))
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("/test%d.md", k), v)
	}
}

func TestDuplicateInsertUpdatesInPlace(t *testing.T) {
	tr := New[intKey, string]()
	tr = tr.Insert(intKey(1), "first")
	tr = tr.Insert(intKey(1), "second")
	assert.Equal(t, 1, tr.TotalKeys())
	v, ok := tr.Search(intKey(1))
	require.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestDeleteRemovesKey(t *testing.T) {
	tr := New[intKey, string]()
	for i := 0; i < 50; i++ {
		tr = tr.Insert(intKey(i), fmt.Sprintf("v%d", i))
	}
	tr = tr.Delete(intKey(25))
	require.NoError(t, tr.CheckInvariants())
	_, ok := tr.Search(intKey(25))
	assert.False(t, ok)
	assert.Equal(t, 49, tr.TotalKeys())
}

func TestInsertDeleteSequenceMaintainsInvariants(t *testing.T) {
	tr := New[intKey, string]()
	r := rand.New(rand.NewSource(7))
	present := map[int]bool{}
	for i := 0; i < 500; i++ {
		k := r.Intn(100)
		if r.Intn(3) == 0 && present[k] {
			tr = tr.Delete(intKey(k))
			delete(present, k)
		} else {
			tr = tr.Insert(intKey(k), fmt.Sprintf("v%d", k))
			present[k] = true
		}
		require.NoError(t, tr.CheckInvariants())
	}
	assert.Equal(t, len(present), tr.TotalKeys())
	for k := range present {
		_, ok := tr.Search(intKey(k))
		assert.True(t, ok)
	}
}

func TestInsertionOrderIndependence(t *testing.T) {
	keys := []int{5, 3, 8, 1, 9, 2, 7, 4, 6, 0}

	a := New[intKey, string]()
	for _, k := range keys {
		a = a.Insert(intKey(k), fmt.Sprintf("v%d", k))
	}

	reversed := append([]int(nil), keys...)
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	b := New[intKey, string]()
	for _, k := range reversed {
		b = b.Insert(intKey(k), fmt.Sprintf("v%d", k))
	}

	for _, k := range keys {
		va, _ := a.Search(intKey(k))
		vb, _ := b.Search(intKey(k))
		assert.Equal(t, va, vb)
	}
}

func TestAllIsOrderIndependentOfInsertionSequence(t *testing.T) {
	keys := []int{5, 3, 8, 1, 9, 2, 7, 4, 6, 0}

	a := New[intKey, string]()
	for _, k := range keys {
		a = a.Insert(intKey(k), fmt.Sprintf("v%d", k))
	}
	reversed := append([]int(nil), keys...)
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	b := New[intKey, string]()
	for _, k := range reversed {
		b = b.Insert(intKey(k), fmt.Sprintf("v%d", k))
	}

	if diff := cmp.Diff(a.All(), b.All()); diff != "" {
		t.Fatalf("All() diverged by insertion order (-a +b):\n%s", diff)
	}
}

func TestSearchAfterDeleteReturnsNone(t *testing.T) {
	tr := New[intKey, string]()
	tr = tr.Insert(intKey(1), "v")
	tr = tr.Delete(intKey(1))
	_, ok := tr.Search(intKey(1))
	assert.False(t, ok)
}
