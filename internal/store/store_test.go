package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendThenGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "s1", "Bonds explained"))
	require.NoError(t, s.Append(ctx, "s1",
		Turn{Role: "user", Content: "What are bonds?"},
		Turn{Role: "assistant", Content: "Debt instruments.", Question: "What are bonds?", Augmented: false},
	))

	session, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "Bonds explained", session.Title)
	require.Len(t, session.Turns, 2)

	last := session.Turns[len(session.Turns)-1]
	require.Equal(t, "assistant", last.Role)
	require.Equal(t, "Debt instruments.", last.Content)
	require.Equal(t, "What are bonds?", last.Question)
	require.False(t, last.RLUsed)
}

func TestAppendImplicitlyCreatesSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "client-minted", Turn{Role: "user", Content: "hi"}))

	session, err := s.Get(ctx, "client-minted")
	require.NoError(t, err)
	require.Equal(t, "New Chat", session.Title)
	require.Len(t, session.Turns, 1)
}

func TestGetUnknownSession(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, "never-existed"))

	require.NoError(t, s.Append(ctx, "s1", Turn{Role: "user", Content: "hi"}))
	require.NoError(t, s.Delete(ctx, "s1"))
	require.NoError(t, s.Delete(ctx, "s1"))

	_, err := s.Get(ctx, "s1")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestListAllOrdersByActivity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "old", Turn{Role: "user", Content: "first"}))
	require.NoError(t, s.Append(ctx, "recent", Turn{Role: "user", Content: "second"}))
	require.NoError(t, s.Append(ctx, "recent", Turn{Role: "assistant", Content: "reply", Question: "second"}))

	summaries, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, "recent", summaries[0].ID)
	require.Equal(t, 2, summaries[0].TurnCount)
	require.Equal(t, 1, summaries[1].TurnCount)
}

func TestConcurrentAppendsSameSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append(ctx, "shared",
				Turn{Role: "user", Content: "q"},
				Turn{Role: "assistant", Content: "a", Question: "q"},
			)
		}()
	}
	wg.Wait()

	session, err := s.Get(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, session.Turns, 20)
	// Pairs must not interleave: every user turn is followed by its answer.
	for i := 0; i < len(session.Turns); i += 2 {
		require.Equal(t, "user", session.Turns[i].Role)
		require.Equal(t, "assistant", session.Turns[i+1].Role)
	}
}

func TestRecordFeedback(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.RecordFeedback(ctx, "q", "a", 1, "s1")
	require.NoError(t, err)
	require.Positive(t, id)

	records, err := s.ListFeedback(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 1, records[0].Rating)
	require.Equal(t, "s1", records[0].SessionID)
}

func TestRecordFeedbackInvalidRating(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.RecordFeedback(ctx, "q", "a", 2, "")
	require.ErrorIs(t, err, ErrInvalidRating)

	records, err := s.ListFeedback(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, records, "a rejected rating must not create a record")
}

func TestFeedbackSurvivesSessionDeletion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "s1", Turn{Role: "user", Content: "q"}))
	_, err := s.RecordFeedback(ctx, "q", "a", 0, "s1")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "s1"))

	records, err := s.ListFeedback(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 1, "feedback copies text; session deletion must not remove it")
}
